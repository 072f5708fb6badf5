package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-guji/luatex-cn-sub004/grid"
)

// sparseResult 构造一个单列带空洞的放置结果：行 2、5、9。
func sparseResult(rows int) *grid.Result {
	cfg := grid.DefaultConfig()
	cfg.Rows = rows
	units := []grid.Unit{
		{Kind: grid.UnitChar, Text: "甲"},
		{Kind: grid.UnitChar, Text: "乙"},
		{Kind: grid.UnitChar, Text: "丙"},
	}
	res := &grid.Result{
		ByIndex: map[int]grid.Position{},
		Pages:   1,
		Config:  cfg,
	}
	for i, row := range []int{2, 5, 9} {
		pos := grid.Position{Page: 0, Column: 0, Row: grid.R(row)}
		res.Placements = append(res.Placements, grid.Placement{
			Unit: &units[i], Index: i, Pos: pos, Layer: grid.LayerMain,
		})
		res.ByIndex[i] = pos
	}
	return res
}

func TestRepackNoneLeavesRowsUntouched(t *testing.T) {
	res := sparseResult(20)
	grid.Repack(res, grid.PackNone)
	assert.Equal(t, grid.R(2), res.ByIndex[0].Row)
	assert.Equal(t, grid.R(5), res.ByIndex[1].Row)
	assert.Equal(t, grid.R(9), res.ByIndex[2].Row)
}

func TestRepackTightClosesHolesButKeepsHeadOffset(t *testing.T) {
	res := sparseResult(20)
	grid.Repack(res, grid.PackTight)

	// 列首条目的偏移是缩进决议的结果，紧排不得回卷。
	assert.Equal(t, grid.R(2), res.ByIndex[0].Row)
	assert.Equal(t, grid.R(3), res.ByIndex[1].Row)
	assert.Equal(t, grid.R(4), res.ByIndex[2].Row)
}

func TestRepackNaturalSpreadsLeftover(t *testing.T) {
	res := sparseResult(20)
	grid.Repack(res, grid.PackNatural)

	// 基线 2，3 条，剩余 15 行：第 i 条 = 2 + i + 5i。
	assert.Equal(t, grid.R(2), res.ByIndex[0].Row)
	assert.Equal(t, grid.R(8), res.ByIndex[1].Row)
	assert.Equal(t, grid.R(14), res.ByIndex[2].Row)
}

func TestRepackNaturalKeepsOrderAndBounds(t *testing.T) {
	cfg := smallConfig(4, 17)
	res, err := grid.Place(chars(40), nil, cfg, nil)
	require.NoError(t, err)
	grid.Repack(res, grid.PackNatural)

	byCol := map[[2]int][]grid.Rat{}
	for i := 0; i < len(res.Placements); i++ {
		pos := res.Placements[i].Pos
		byCol[[2]int{pos.Page, pos.Column}] = append(byCol[[2]int{pos.Page, pos.Column}], pos.Row)
	}
	for col, rows := range byCol {
		for i := 1; i < len(rows); i++ {
			assert.Negative(t, rows[i-1].Cmp(rows[i]), "列 %v 重排后乱序", col)
		}
		last := rows[len(rows)-1]
		assert.Negative(t, last.Cmp(grid.R(cfg.Rows)), "列 %v 超出行数上限", col)
	}
}

func TestRepackNaturalFullColumnStaysIntegral(t *testing.T) {
	cfg := smallConfig(4, 10)
	res, err := grid.Place(chars(10), nil, cfg, nil)
	require.NoError(t, err)
	grid.Repack(res, grid.PackNatural)

	// 满列没有剩余空间，匀排退化为恒等。
	for i := 0; i < 10; i++ {
		assert.Equal(t, grid.R(i), res.ByIndex[i].Row)
	}
}

func TestRepackKeepsNotePairsOnSharedRows(t *testing.T) {
	cfg := smallConfig(4, 20)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(6)
	units := append(chars(3), grid.Unit{Kind: grid.UnitNote, NoteID: "jz"})
	res, err := grid.Place(units, reg, cfg, nil)
	require.NoError(t, err)
	grid.Repack(res, grid.PackNatural)

	rows := map[string][]grid.Rat{}
	for _, pl := range res.Placements {
		if pl.Layer != grid.LayerNote {
			continue
		}
		key := "inner"
		if pl.Pos.Sub == grid.SubOuter {
			key = "outer"
		}
		rows[key] = append(rows[key], pl.Pos.Row)
	}
	require.Len(t, rows["outer"], 3)
	require.Len(t, rows["inner"], 3)
	for i := range rows["outer"] {
		assert.Zero(t, rows["outer"][i].Cmp(rows["inner"][i]), "平衡对第 %d 行错位", i)
	}
}

func TestRepackSkipsBlockAnchoredColumns(t *testing.T) {
	res := sparseResult(20)
	block := grid.Unit{Kind: grid.UnitBlock, Span: grid.Span{Cols: 1, Rows: 2}}
	pos := grid.Position{Page: 0, Column: 0, Row: grid.R(12)}
	res.Placements = append(res.Placements, grid.Placement{
		Unit: &block, Index: 3, Pos: pos, Layer: grid.LayerMain,
	})
	res.ByIndex[3] = pos
	grid.Repack(res, grid.PackTight)

	// 列内有块，格已写入占用集，整列不参与重排。
	assert.Equal(t, grid.R(2), res.ByIndex[0].Row)
	assert.Equal(t, grid.R(5), res.ByIndex[1].Row)
	assert.Equal(t, grid.R(9), res.ByIndex[2].Row)
	assert.Equal(t, grid.R(12), res.ByIndex[3].Row)
}
