package grid

import (
	"io"

	"github.com/charmbracelet/log"
)

// 放置引擎：对规范化流做单遍、严格按序的遍历，为每个单元指派格位。
// 游标状态集中在 placer 结构体里显式传递，不存在任何隐藏全局量。

type pageCol [2]int

type placer struct {
	cfg    Config
	reg    *Registries
	logger *log.Logger

	occ OccupancyMap

	out   []Placement
	byIdx map[int]Position

	page       int
	col        int
	row        int  // 列已开始时指向下一空行
	colStarted bool // 当前列是否已确定缩进基线
	pageDirty  bool // 当前页是否已有内容，用于抑制空页

	colBase   map[pageCol]int // 列 → 既有缩进基线（首个落格行）
	sectionAt map[int]pageCol // 段落 → 起始列，用于首行缩进的跨列判定
	sideHigh  map[pageCol]int // 旁注逐列高水位，独立于 OccupancyMap
	lastMain  *Position       // 最近一个主流格位，旁注锚点
	placed    bool
}

// Place 对规范化流执行一次放置运行。
// 致命错误（容量超限、占用冲突、孤注无解）中止运行并携带单元序号与游标；
// 可恢复错误（注文缺失）记入 logger 后继续。
func Place(units []Unit, reg *Registries, cfg Config, logger *log.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistries()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	p := &placer{
		cfg:       cfg,
		reg:       reg,
		logger:    logger,
		occ:       OccupancyMap{},
		byIdx:     map[int]Position{},
		colBase:   map[pageCol]int{},
		sectionAt: map[int]pageCol{},
		sideHigh:  map[pageCol]int{},
		col:       firstContentColumn(cfg),
	}

	s := newStream(units)
	for u := s.next(); u != nil; u = s.next() {
		idx := s.index()
		var err error
		switch u.Kind {
		case UnitChar:
			err = p.placeChar(u, idx)
		case UnitBlock:
			err = p.placeBlock(u, idx)
		case UnitBreak:
			err = p.dispatchBreak(u, s, idx)
		case UnitNote:
			err = p.placeNote(u, idx)
		case UnitSideNote:
			err = p.placeSideNote(u, idx)
		case UnitMark:
			err = p.placeMark(u, idx)
		}
		if err != nil {
			return nil, err
		}
	}

	pages := 0
	if p.placed {
		pages = p.page + 1
	}
	return &Result{
		Placements: p.out,
		ByIndex:    p.byIdx,
		Pages:      pages,
		Config:     cfg,
	}, nil
}

func firstContentColumn(cfg Config) int {
	col := 0
	for col < cfg.Columns && cfg.Reserved(col) {
		col++
	}
	return col
}

func (p *placer) cursor() Cursor {
	return Cursor{Page: p.page, Column: p.col, Row: p.row}
}

func (p *placer) key() pageCol { return pageCol{p.page, p.col} }

// advanceColumn 前进到下一个非保留列，越过页宽时翻页。
func (p *placer) advanceColumn(idx int) error {
	col := p.col + 1
	for col < p.cfg.Columns && p.cfg.Reserved(col) {
		col++
	}
	if col >= p.cfg.Columns {
		return p.advancePage(idx)
	}
	p.col = col
	p.colStarted = false
	return nil
}

// advancePage 翻页并校验页数上限。
func (p *placer) advancePage(idx int) error {
	if p.cfg.MaxPages > 0 && p.page+2 > p.cfg.MaxPages {
		return &CapacityError{UnitIndex: idx, Cursor: p.cursor(), Pages: p.page + 2, MaxPages: p.cfg.MaxPages}
	}
	p.page++
	p.col = firstContentColumn(p.cfg)
	p.colStarted = false
	p.pageDirty = false
	return nil
}

// dispatchBreak 实现三种断行。智能断行前瞻一个单元：
// 段末接正文强制换列，段末接夹注则让注文续排本列。
func (p *placer) dispatchBreak(u *Unit, s *stream, idx int) error {
	switch u.Break {
	case BreakSmart:
		if next := s.peek(); next != nil && next.Kind == UnitNote {
			return nil
		}
		return p.advanceColumn(idx)
	case BreakColumn:
		return p.advanceColumn(idx)
	case BreakPage:
		if !p.pageDirty {
			return nil
		}
		return p.advancePage(idx)
	}
	return nil
}

// resolveIndent 按严格三级优先解析缩进：强制 > 显式 > 继承。
// 单一 switch 表达整个优先序，不依赖数值哨兵。
func (p *placer) resolveIndent(u *Unit) int {
	switch {
	case u.Forced != nil:
		return p.clampIndent(*u.Forced)
	case u.Scope != nil:
		if u.Scope.HasFirst && p.sectionStartsHere(u) {
			return p.clampIndent(u.Scope.FirstIndent)
		}
		return p.clampIndent(u.Scope.Indent)
	default:
		if base, ok := p.colBase[p.key()]; ok {
			return base
		}
		return 0
	}
}

// sectionStartsHere 报告当前列是否为该段落的起始列：
// 首行缩进只作用于段落起始列的首行，续排列使用普通缩进。
// 起始列在单元最终落定后才登记（见 placeChar/placeBlock），
// 段落首字滚入新列时首行缩进要跟着落到那一列。
func (p *placer) sectionStartsHere(u *Unit) bool {
	start, ok := p.sectionAt[u.Section]
	return !ok || start == p.key()
}

func (p *placer) clampIndent(n int) int {
	if n < 0 {
		return 0
	}
	if p.cfg.Rows > 0 && n > p.cfg.Rows-1 {
		return p.cfg.Rows - 1
	}
	return n
}

// startColumn 在新列首个落格单元处确定缩进基线。
func (p *placer) startColumn(u *Unit) {
	if p.colStarted {
		return
	}
	ind := p.resolveIndent(u)
	p.row = ind
	p.colStarted = true
	if _, ok := p.colBase[p.key()]; !ok {
		p.colBase[p.key()] = ind
	}
}

func (p *placer) noteSection(u *Unit) {
	if _, ok := p.sectionAt[u.Section]; !ok {
		p.sectionAt[u.Section] = p.key()
	}
}

func (p *placer) emit(u *Unit, idx int, pos Position, layer Layer) {
	p.out = append(p.out, Placement{Unit: u, Index: idx, Pos: pos, Layer: layer})
	if idx >= 0 && layer == LayerMain {
		p.byIdx[idx] = pos
	}
	p.placed = true
}

// placeChar 为单个文字指派一格。推进时读取 OccupancyMap 跳过被块占用的格。
func (p *placer) placeChar(u *Unit, idx int) error {
	if p.cfg.Rows < 1 {
		return &CapacityError{UnitIndex: idx, Cursor: p.cursor(), Pages: p.page + 1, MaxPages: p.cfg.MaxPages}
	}
	for {
		p.startColumn(u)
		for p.row < p.cfg.Rows && p.occ.Occupied(Cell{Page: p.page, Column: p.col, Row: p.row}) {
			p.row++
		}
		if p.row >= p.cfg.Rows {
			if err := p.advanceColumn(idx); err != nil {
				return err
			}
			continue
		}
		break
	}
	p.noteSection(u)
	pos := Position{Page: p.page, Column: p.col, Row: R(p.row)}
	p.emit(u, idx, pos, LayerMain)
	p.lastMain = &pos
	p.pageDirty = true
	p.row++
	return nil
}

// placeBlock 放置 宽×高 的矩形块：整块先查占用，有任一重叠即报错且不做
// 半提交；成功后游标越过块的列跨度，续排行保持块的起始行。
func (p *placer) placeBlock(u *Unit, idx int) error {
	span := u.Span
	if span.Cols < 1 {
		span.Cols = 1
	}
	if span.Rows < 1 {
		span.Rows = 1
	}
	if span.Rows > p.cfg.Rows || span.Cols > p.maxContentRun() {
		return &OversizeError{UnitIndex: idx, Span: span}
	}

	for {
		p.startColumn(u)
		if p.row+span.Rows > p.cfg.Rows {
			if err := p.advanceColumn(idx); err != nil {
				return err
			}
			continue
		}
		if !p.spanFits(p.col, span.Cols) {
			if err := p.advanceColumn(idx); err != nil {
				return err
			}
			continue
		}
		break
	}

	cells := rectCells(p.page, p.col, p.row, span)
	if hit, collided := p.occ.Collide(cells); collided {
		return &CollisionError{UnitIndex: idx, Cursor: p.cursor(), Cell: hit}
	}
	p.occ.Mark(cells)
	p.noteSection(u)

	pos := Position{Page: p.page, Column: p.col, Row: R(p.row)}
	p.emit(u, idx, pos, LayerMain)
	p.lastMain = &pos
	p.pageDirty = true

	startRow := p.row
	target := p.col + span.Cols
	for target < p.cfg.Columns && p.cfg.Reserved(target) {
		target++
	}
	if target >= p.cfg.Columns {
		return p.advancePage(idx)
	}
	p.col = target
	p.row = startRow
	p.colStarted = true
	if _, ok := p.colBase[p.key()]; !ok {
		p.colBase[p.key()] = startRow
	}
	return nil
}

// spanFits 报告从 col 起的 w 列是否都在页内且不含保留列。
func (p *placer) spanFits(col, w int) bool {
	if col+w > p.cfg.Columns {
		return false
	}
	for c := col; c < col+w; c++ {
		if p.cfg.Reserved(c) {
			return false
		}
	}
	return true
}

// maxContentRun 返回页内连续非保留列的最大长度。
func (p *placer) maxContentRun() int {
	best, run := 0, 0
	for col := 0; col < p.cfg.Columns; col++ {
		if p.cfg.Reserved(col) {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}

// placeNote 查表取出夹注内容流并配平；id 缺失按零格处理，记日志后继续，
// 单条注文的丢失不应中止整个篇章的放置。
func (p *placer) placeNote(u *Unit, idx int) error {
	units, ok := p.reg.Inline[u.NoteID]
	if !ok {
		p.logger.Warn("夹注登记缺失，按零格跳过", "id", u.NoteID, "unit", idx)
		return nil
	}
	delete(p.reg.Inline, u.NoteID)
	if len(units) == 0 {
		return nil
	}
	return p.balanceNote(u, units, idx)
}

// placeMark 把栏饰标记放入当前位置之后最近的保留列，不占主流格。
func (p *placer) placeMark(u *Unit, idx int) error {
	if p.cfg.ReservedEvery <= 0 {
		p.logger.Warn("版面未配置保留列，栏饰标记被忽略", "id", u.MarkID, "unit", idx)
		return nil
	}
	rc := p.col
	for rc < p.cfg.Columns && !p.cfg.Reserved(rc) {
		rc++
	}
	if rc >= p.cfg.Columns {
		p.logger.Warn("当前列之后无保留列，栏饰标记被忽略", "id", u.MarkID, "unit", idx)
		return nil
	}
	// 标记与锚点（最近的主流单元）同行；页上尚无内容时落在首行。
	row := 0
	if p.lastMain != nil && p.lastMain.Page == p.page {
		row = p.lastMain.Row.Floor()
	}
	if row > p.cfg.Rows-1 {
		row = p.cfg.Rows - 1
	}
	if row < 0 {
		row = 0
	}
	p.emit(u, idx, Position{Page: p.page, Column: rc, Row: R(row)}, LayerMark)
	return nil
}
