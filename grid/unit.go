package grid

// 该文件定义排版引擎的输入与输出数据模型：内容单元、格位坐标与登记表。
// 内容单元由 flow 包（规范化器）产出，进入引擎后视为不可变。

// UnitKind 区分内容单元的种类。
type UnitKind int

const (
	UnitChar     UnitKind = iota // 单个已定形文字（或保留空行的零内容占位）
	UnitBlock                    // 占据 宽×高 格的矩形块（插图、大字等）
	UnitBreak                    // 断行指令
	UnitNote                     // 夹注锚点（双行小字）
	UnitSideNote                 // 旁注锚点（栏外批注）
	UnitMark                     // 栏饰标记（置于保留列）
)

// BreakKind 区分三种断行。
type BreakKind int

const (
	// BreakSmart 需要前瞻一个单元：后接夹注锚点时不换列，否则换列。
	BreakSmart BreakKind = iota
	// BreakColumn 无条件换列。
	BreakColumn
	// BreakPage 换页；当前页尚无内容时忽略，避免产出空页。
	BreakPage
)

// Metrics 记录由外部度量能力提供的单元尺寸（抽象长度单位，通常为 mm）。
// 引擎自身从不计算字形尺寸。
type Metrics struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Span 表示块单元占用的格数。
type Span struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ScopeIndent 是规范化器从结构容器恢复出的显式缩进（格为单位）。
// FirstIndent 仅作用于段落在其起始列的首行。
type ScopeIndent struct {
	Indent      int  `json:"indent"`
	FirstIndent int  `json:"firstIndent"`
	HasFirst    bool `json:"hasFirst"`
}

// Unit 是规范化后内容流中的一个单元。字段按 Kind 取用。
type Unit struct {
	Kind UnitKind `json:"kind"`

	// Char
	Text    string  `json:"text,omitempty"` // 空串表示保留空行的占位
	Style   string  `json:"style,omitempty"`
	Metrics Metrics `json:"metrics,omitempty"`

	// Block
	Span  Span   `json:"span,omitempty"`
	Inner []Unit `json:"inner,omitempty"`

	// Break
	Break BreakKind `json:"break,omitempty"`

	// Note / SideNote / Mark
	NoteID string `json:"noteId,omitempty"`
	MarkID string `json:"markId,omitempty"`

	// 缩进三级中的前两级：Forced 直接附着于单元，永远优先；
	// Scope 来自最内层结构作用域。二者皆缺省时回落到列的既有缩进。
	Forced  *int         `json:"forced,omitempty"`
	Scope   *ScopeIndent `json:"scope,omitempty"`
	Section int          `json:"section"` // 逻辑段落编号，用于首行缩进的跨列判定
}

// SubColumn 标记夹注所在的半列：0 表示主流整格。
type SubColumn int

const (
	SubNone  SubColumn = 0
	SubOuter SubColumn = 1 // 右半列，先读
	SubInner SubColumn = 2 // 左半列
)

// Position 是一个单元的离散格位。Row 为有理数：主流恒为整数行，
// 注文配平与重排可能赋出分数行。
type Position struct {
	Page   int       `json:"page"`
	Column int       `json:"column"`
	Row    Rat       `json:"row"`
	Sub    SubColumn `json:"sub,omitempty"`
}

// Layer 区分放置结果属于哪条流。
type Layer int

const (
	LayerMain Layer = iota // 主流
	LayerNote              // 夹注（双半列）
	LayerSide              // 旁注
	LayerMark              // 栏饰
)

// Placement 记录一个单元的最终格位。
// Index 是单元在规范化流中的序号；注文与旁注的内层单元不属于主流，Index 为 -1。
type Placement struct {
	Unit  *Unit    `json:"unit"`
	Index int      `json:"index"`
	Pos   Position `json:"pos"`
	Layer Layer    `json:"layer"`
}

// Result 保存一次放置运行的完整输出。
type Result struct {
	Placements []Placement      `json:"placements"`
	ByIndex    map[int]Position `json:"byIndex"` // 主流单元序号 → 格位
	Pages      int              `json:"pages"`
	Config     Config           `json:"config"`
}

// SideNote 是旁注登记项：内容流加上逐条的竖向偏移配置。
type SideNote struct {
	Units      []Unit  `json:"units"`
	YOffset    int     `json:"yOffset"`    // 相对锚点的附加行偏移
	Pad        int     `json:"pad"`        // 距页顶的最小行数
	CellHeight float64 `json:"cellHeight"` // 0 表示沿用版面格高
}

// Registries 汇集两张按 id 检索的注文表，放置前由前端填好，按 id 消费一次。
type Registries struct {
	Inline map[string][]Unit   `json:"inline"`
	Side   map[string]SideNote `json:"side"`
}

// NewRegistries 返回空登记表。
func NewRegistries() *Registries {
	return &Registries{
		Inline: map[string][]Unit{},
		Side:   map[string]SideNote{},
	}
}

// Measurer 是前端必须提供的度量能力（见外部接口约定）。
type Measurer interface {
	Measure(u *Unit) (Metrics, error)
}
