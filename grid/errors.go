package grid

import "fmt"

// 错误分级：容量超限、占用冲突、孤注无解为致命错误，中止本次放置；
// 注文缺失为可恢复错误，仅记录日志后继续（见 placer.go）。

// Cursor 是报错时的游标快照，便于定位。
type Cursor struct {
	Page   int `json:"page"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

func (c Cursor) String() string {
	return fmt.Sprintf("页 %d 列 %d 行 %d", c.Page, c.Column, c.Row)
}

// CapacityError 表示页数超过配置上限。
type CapacityError struct {
	UnitIndex int
	Cursor    Cursor
	Pages     int
	MaxPages  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("容量超限：第 %d 个单元需要第 %d 页，超过上限 %d 页（游标 %s）",
		e.UnitIndex, e.Pages, e.MaxPages, e.Cursor)
}

// Cell 标识一个具体格位。
type Cell struct {
	Page   int `json:"page"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

// CollisionError 表示块放置与既有占用重叠。引擎不做自动挪移：
// 静默移动会让成品与作者意图脱节，必须报给调用方处理。
type CollisionError struct {
	UnitIndex int
	Cursor    Cursor
	Cell      Cell
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("占用冲突：第 %d 个单元的块与格位(页 %d 列 %d 行 %d)既有内容重叠（游标 %s）",
		e.UnitIndex, e.Cell.Page, e.Cell.Column, e.Cell.Row, e.Cursor)
}

// OrphanError 表示注文配平在强制换列后仍放不下一对平衡条目。
type OrphanError struct {
	UnitIndex int
	Cursor    Cursor
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("孤注无解：第 %d 个单元的夹注在换列后仍无一对完整行可用（游标 %s）",
		e.UnitIndex, e.Cursor)
}

// OversizeError 表示块本身大于版面可容纳的最大矩形。
type OversizeError struct {
	UnitIndex int
	Span      Span
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("容量超限：第 %d 个单元的块 %d×%d 超过版面可用矩形",
		e.UnitIndex, e.Span.Cols, e.Span.Rows)
}
