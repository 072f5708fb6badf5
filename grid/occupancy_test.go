package grid

import "testing"

func TestOccupancyMarkAndCollide(t *testing.T) {
	occ := OccupancyMap{}
	a := rectCells(0, 1, 2, Span{Cols: 2, Rows: 3})
	if len(a) != 6 {
		t.Fatalf("期望 6 个格，得到 %d", len(a))
	}
	if _, hit := occ.Collide(a); hit {
		t.Fatal("空占用集不应报冲突")
	}
	occ.Mark(a)

	if !occ.Occupied(Cell{Page: 0, Column: 2, Row: 4}) {
		t.Fatal("块右下角的格应被占用")
	}
	if occ.Occupied(Cell{Page: 0, Column: 3, Row: 2}) {
		t.Fatal("块外的格不应被占用")
	}

	// 部分重叠的第二个块必须在任何写入前被拦下。
	b := rectCells(0, 2, 4, Span{Cols: 2, Rows: 2})
	hit, collided := occ.Collide(b)
	if !collided {
		t.Fatal("重叠的块应报冲突")
	}
	if hit != (Cell{Page: 0, Column: 2, Row: 4}) {
		t.Fatalf("冲突格应为块内首个已占用格，得到 %+v", hit)
	}

	// 不相交的块各占其格。
	c := rectCells(0, 4, 0, Span{Cols: 1, Rows: 2})
	if _, collided := occ.Collide(c); collided {
		t.Fatal("不相交的块不应报冲突")
	}
	occ.Mark(c)
	if !occ.Occupied(Cell{Page: 0, Column: 4, Row: 1}) {
		t.Fatal("第二个块的格应被占用")
	}
}

func TestOccupancyIsPerPage(t *testing.T) {
	occ := OccupancyMap{}
	occ.Mark(rectCells(0, 0, 0, Span{Cols: 1, Rows: 1}))
	if occ.Occupied(Cell{Page: 1, Column: 0, Row: 0}) {
		t.Fatal("占用不应跨页")
	}
}
