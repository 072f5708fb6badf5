package flow

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/open-guji/luatex-cn-sub004/binding"
	"github.com/open-guji/luatex-cn-sub004/dsl"
	"github.com/open-guji/luatex-cn-sub004/grid"
)

// normalizer 执行正文内容树到线性单元流的压平。
// 结构容器不进入输出流，其偏移以显式缩进附着在流内单元上。
type normalizer struct {
	cfg    grid.Config
	meas   grid.Measurer
	data   any
	logger *log.Logger
	reg    *grid.Registries

	scopes        []*scopeFrame
	section       int
	nextSection   int
	pendingForced *int
	units         []grid.Unit
}

// scopeFrame 是一层结构作用域。active 为假时该层不产生显式缩进，
// 单元回落到列的既有缩进。
type scopeFrame struct {
	indent grid.ScopeIndent
	active bool
}

func (n *normalizer) walkBlock(block *dsl.Block) error {
	if block == nil {
		return nil
	}
	for _, stmt := range block.Statements {
		switch {
		case stmt.Text != nil:
			if err := n.lowerText(string(stmt.Text.Value)); err != nil {
				return err
			}
		case stmt.Command != nil:
			if err := n.lowerCommand(stmt.Command); err != nil {
				return err
			}
		case stmt.Assignment != nil:
			n.logger.Warn("正文段落忽略赋值语句", "key", stmt.Assignment.Key)
		}
	}
	return nil
}

func (n *normalizer) lowerCommand(cmd *dsl.Command) error {
	switch strings.ToLower(cmd.Name) {
	case "section":
		return n.lowerSection(cmd)
	case "shift":
		return n.lowerShift(cmd)
	case "flush":
		return n.lowerFlush(cmd)
	case "space":
		return n.lowerSpace(cmd)
	case "break":
		return n.lowerBreak(cmd)
	case "note":
		return n.lowerNote(cmd)
	case "side":
		return n.lowerSide(cmd)
	case "block":
		return n.lowerBlockUnit(cmd)
	case "mark":
		return n.lowerMark(cmd)
	default:
		return fmt.Errorf("%s: 未知正文命令 %q", cmd.Pos, cmd.Name)
	}
}

// lowerSection 压平一个段落容器：进入新作用域与新段落编号，
// 容器本体不出现在流里。第一参数为缩进（格），第二参数为首行缩进。
func (n *normalizer) lowerSection(cmd *dsl.Command) error {
	parent := n.currentScope()
	frame := &scopeFrame{active: true}
	if parent != nil {
		frame.indent.Indent = parent.indent.Indent
	}
	if v, ok := argInt(cmd.Args, 0); ok {
		frame.indent.Indent += v
	}
	if v, ok := argInt(cmd.Args, 1); ok {
		frame.indent.FirstIndent = frame.indent.Indent + v
		frame.indent.HasFirst = true
	}

	prevSection := n.section
	n.nextSection++
	n.section = n.nextSection

	n.scopes = append(n.scopes, frame)
	err := n.walkBlock(cmd.Block)
	n.scopes = n.scopes[:len(n.scopes)-1]
	n.section = prevSection
	return err
}

// lowerShift 把物理长度偏移换算为整格缩进并累加到当前作用域。
func (n *normalizer) lowerShift(cmd *dsl.Command) error {
	raw, ok := argString(cmd.Args, 0)
	if !ok {
		return fmt.Errorf("%s: shift 需要长度参数", cmd.Pos)
	}
	length := parseLength(raw)
	cells := int(math.Round(length / n.cfg.CellWidth))
	frame := n.currentScope()
	if frame == nil {
		frame = &scopeFrame{}
		n.scopes = append(n.scopes, frame)
	}
	frame.indent.Indent += cells
	frame.active = true
	return nil
}

// lowerFlush 记录一条强制缩进，由流内下一个落格单元消费。
func (n *normalizer) lowerFlush(cmd *dsl.Command) error {
	v := 0
	if parsed, ok := argInt(cmd.Args, 0); ok {
		v = parsed
	}
	n.pendingForced = &v
	return nil
}

// lowerSpace 产出 n 个零内容占位，保留空行但不画任何字形。
func (n *normalizer) lowerSpace(cmd *dsl.Command) error {
	count := 1
	if v, ok := argInt(cmd.Args, 0); ok {
		count = v
	}
	for i := 0; i < count; i++ {
		n.append(grid.Unit{Kind: grid.UnitChar})
	}
	return nil
}

func (n *normalizer) lowerBreak(cmd *dsl.Command) error {
	kind := grid.BreakSmart
	if name, ok := argString(cmd.Args, 0); ok {
		switch strings.ToLower(name) {
		case "smart":
			kind = grid.BreakSmart
		case "column":
			kind = grid.BreakColumn
		case "page":
			kind = grid.BreakPage
		default:
			return fmt.Errorf("%s: 未知断行方式 %q", cmd.Pos, name)
		}
	}
	n.append(grid.Unit{Kind: grid.UnitBreak, Break: kind})
	return nil
}

// lowerNote 处理夹注锚点。`note id` 引用 notes 段落的登记项；
// 带块的写法就地登记，无 id 时分配匿名 id。
func (n *normalizer) lowerNote(cmd *dsl.Command) error {
	id, _ := argString(cmd.Args, 0)
	if cmd.Block != nil {
		if id == "" {
			id = uuid.NewString()
		}
		units, err := n.lowerInline(cmd.Block)
		if err != nil {
			return err
		}
		n.reg.Inline[id] = units
	}
	if id == "" {
		return fmt.Errorf("%s: note 需要 id 或内容块", cmd.Pos)
	}
	n.append(grid.Unit{Kind: grid.UnitNote, NoteID: id})
	return nil
}

// lowerSide 处理旁注锚点，规则与夹注一致。
func (n *normalizer) lowerSide(cmd *dsl.Command) error {
	id, _ := argString(cmd.Args, 0)
	if cmd.Block != nil {
		if id == "" {
			id = uuid.NewString()
		}
		sn, err := n.lowerSideNote(cmd.Block)
		if err != nil {
			return err
		}
		n.reg.Side[id] = sn
	}
	if id == "" {
		return fmt.Errorf("%s: side 需要 id 或内容块", cmd.Pos)
	}
	n.append(grid.Unit{Kind: grid.UnitSideNote, NoteID: id})
	return nil
}

// lowerBlockUnit 处理矩形块：`block 宽 高 { ... }`，宽高以格计。
func (n *normalizer) lowerBlockUnit(cmd *dsl.Command) error {
	w, okW := argInt(cmd.Args, 0)
	h, okH := argInt(cmd.Args, 1)
	if !okW || !okH {
		return fmt.Errorf("%s: block 需要宽、高两个整数参数", cmd.Pos)
	}
	var inner []grid.Unit
	if cmd.Block != nil {
		var err error
		inner, err = n.lowerInline(cmd.Block)
		if err != nil {
			return err
		}
	}
	u := grid.Unit{Kind: grid.UnitBlock, Span: grid.Span{Cols: w, Rows: h}, Inner: inner}
	if err := n.measure(&u); err != nil {
		return err
	}
	n.append(u)
	return nil
}

func (n *normalizer) lowerMark(cmd *dsl.Command) error {
	id, ok := argString(cmd.Args, 0)
	if !ok {
		return fmt.Errorf("%s: mark 需要标记 id", cmd.Pos)
	}
	n.append(grid.Unit{Kind: grid.UnitMark, MarkID: id})
	return nil
}

// lowerText 把文本字面量逐字压平。空白与换行丢弃；
// 全角空格 U+3000 转为零内容占位，保留其格位。
func (n *normalizer) lowerText(text string) error {
	text = binding.Interpolate(text, n.data)
	for _, r := range text {
		if r == '　' {
			n.append(grid.Unit{Kind: grid.UnitChar})
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		u := grid.Unit{Kind: grid.UnitChar, Text: string(r)}
		if err := n.measure(&u); err != nil {
			return err
		}
		n.append(u)
	}
	return nil
}

// lowerInline 在隔离的子上下文里压平一个内容块，供注文与块内文使用。
// 子上下文不继承作用域缩进，注文在半列里自成一体。
func (n *normalizer) lowerInline(block *dsl.Block) ([]grid.Unit, error) {
	sub := &normalizer{
		cfg:    n.cfg,
		meas:   n.meas,
		data:   n.data,
		logger: n.logger,
		reg:    n.reg,
	}
	if err := sub.walkBlock(block); err != nil {
		return nil, err
	}
	return sub.units, nil
}

// lowerSideNote 解析旁注登记块：offset/pad/cell-height 赋值加正文内容。
func (n *normalizer) lowerSideNote(block *dsl.Block) (grid.SideNote, error) {
	var sn grid.SideNote
	content := &dsl.Block{}
	for _, stmt := range block.Statements {
		if stmt.Assignment != nil {
			raw := valueToString(stmt.Assignment.Value)
			switch strings.ToLower(stmt.Assignment.Key) {
			case "offset":
				if v, ok := parseInt(raw); ok {
					sn.YOffset = v
				}
			case "pad":
				if v, ok := parseInt(raw); ok {
					sn.Pad = v
				}
			case "cell-height":
				sn.CellHeight = parseLength(raw)
			default:
				n.logger.Warn("旁注登记忽略未知属性", "key", stmt.Assignment.Key)
			}
			continue
		}
		content.Statements = append(content.Statements, stmt)
	}
	units, err := n.lowerInline(content)
	if err != nil {
		return sn, err
	}
	sn.Units = units
	return sn, nil
}

// collectNotes 装填 notes 段落：note/side 命令必须带 id 与内容块。
func (n *normalizer) collectNotes(block *dsl.Block) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		id, ok := argString(cmd.Args, 0)
		if !ok || cmd.Block == nil {
			return fmt.Errorf("%s: notes 段落里的 %s 需要 id 与内容块", cmd.Pos, cmd.Name)
		}
		switch strings.ToLower(cmd.Name) {
		case "note":
			units, err := n.lowerInline(cmd.Block)
			if err != nil {
				return err
			}
			n.reg.Inline[id] = units
		case "side":
			sn, err := n.lowerSideNote(cmd.Block)
			if err != nil {
				return err
			}
			n.reg.Side[id] = sn
		default:
			return fmt.Errorf("%s: notes 段落只接受 note/side，得到 %q", cmd.Pos, cmd.Name)
		}
	}
	return nil
}

// append 把单元送入输出流并附着缩进上下文。
// 强制缩进只由第一个落格单元（文字或块）消费。
func (n *normalizer) append(u grid.Unit) {
	u.Section = n.section
	if frame := n.currentScope(); frame != nil && frame.active {
		si := frame.indent
		u.Scope = &si
	}
	if n.pendingForced != nil && (u.Kind == grid.UnitChar || u.Kind == grid.UnitBlock) {
		u.Forced = n.pendingForced
		n.pendingForced = nil
	}
	n.units = append(n.units, u)
}

func (n *normalizer) currentScope() *scopeFrame {
	if len(n.scopes) == 0 {
		return nil
	}
	return n.scopes[len(n.scopes)-1]
}

// measure 委托外部度量能力为单元填入尺寸。零内容占位不度量。
func (n *normalizer) measure(u *grid.Unit) error {
	if n.meas == nil {
		return nil
	}
	if u.Kind == grid.UnitChar && u.Text == "" {
		return nil
	}
	m, err := n.meas.Measure(u)
	if err != nil {
		return fmt.Errorf("度量单元失败: %w", err)
	}
	u.Metrics = m
	return nil
}

func argString(args []*dsl.Lexeme, i int) (string, bool) {
	if i >= len(args) || args[i] == nil {
		return "", false
	}
	return args[i].Value, true
}

func argInt(args []*dsl.Lexeme, i int) (int, bool) {
	s, ok := argString(args, i)
	if !ok {
		return 0, false
	}
	return parseInt(trimUnit(s))
}
