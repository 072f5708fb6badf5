package grid

// OccupancyMap 是稀疏占用集：块放置写入，游标推进读取以跳过被占格。
// 放置期间只有引擎这一个写者，无需加锁。
type OccupancyMap map[Cell]struct{}

// Occupied 报告格位是否被占。
func (m OccupancyMap) Occupied(c Cell) bool {
	_, ok := m[c]
	return ok
}

// Mark 标记一组格位。调用方须先用 Collide 检查，保证不出现半提交。
func (m OccupancyMap) Mark(cells []Cell) {
	for _, c := range cells {
		m[c] = struct{}{}
	}
}

// Collide 返回第一个已被占用的格位。
func (m OccupancyMap) Collide(cells []Cell) (Cell, bool) {
	for _, c := range cells {
		if m.Occupied(c) {
			return c, true
		}
	}
	return Cell{}, false
}

// rectCells 展开一个 w×h 矩形覆盖的全部格位。
func rectCells(page, col, row int, span Span) []Cell {
	cells := make([]Cell, 0, span.Cols*span.Rows)
	for dc := 0; dc < span.Cols; dc++ {
		for dr := 0; dr < span.Rows; dr++ {
			cells = append(cells, Cell{Page: page, Column: col + dc, Row: row + dr})
		}
	}
	return cells
}
