package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-guji/luatex-cn-sub004/grid"
)

// notePositions 收集夹注层的格位，按外、内分开。
func notePositions(res *grid.Result) (outer, inner []grid.Position) {
	for _, pl := range res.Placements {
		if pl.Layer != grid.LayerNote {
			continue
		}
		switch pl.Pos.Sub {
		case grid.SubOuter:
			outer = append(outer, pl.Pos)
		case grid.SubInner:
			inner = append(inner, pl.Pos)
		}
	}
	return outer, inner
}

func TestNoteBalancedAcrossSubColumns(t *testing.T) {
	cfg := smallConfig(4, 20)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(6)
	units := append(chars(10), grid.Unit{Kind: grid.UnitNote, NoteID: "jz"})
	units = append(units, grid.Unit{Kind: grid.UnitChar, Text: "后"})

	res, err := grid.Place(units, reg, cfg, nil)
	require.NoError(t, err)

	outer, inner := notePositions(res)
	require.Len(t, outer, 3)
	require.Len(t, inner, 3)

	// 外侧承接注文流的前半，内外第 i 条共行，从主流游标行起排。
	for i, pos := range outer {
		assert.Equal(t, grid.R(10+i), pos.Row)
		assert.Equal(t, 0, pos.Column)
	}
	for i, pos := range inner {
		assert.Equal(t, grid.R(10+i), pos.Row)
	}

	// 主流在注文消费的行数之后续排。
	assert.Equal(t, grid.Position{Column: 0, Row: grid.R(13)}, res.ByIndex[11])
}

func TestNoteReadingOrderOuterFirst(t *testing.T) {
	cfg := smallConfig(4, 20)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(5)
	units := []grid.Unit{{Kind: grid.UnitNote, NoteID: "jz"}}

	res, err := grid.Place(units, reg, cfg, nil)
	require.NoError(t, err)

	// 奇数条时外侧多一条：前 3 条在外、后 2 条在内。
	var order []grid.SubColumn
	for _, pl := range res.Placements {
		order = append(order, pl.Pos.Sub)
	}
	assert.Equal(t, []grid.SubColumn{
		grid.SubOuter, grid.SubOuter, grid.SubOuter,
		grid.SubInner, grid.SubInner,
	}, order)
}

func TestNoteFairnessNeverWorseThanOne(t *testing.T) {
	cfg := smallConfig(6, 20)
	for length := 1; length <= 90; length++ {
		reg := grid.NewRegistries()
		reg.Inline["jz"] = chars(length)
		units := []grid.Unit{{Kind: grid.UnitNote, NoteID: "jz"}}
		res, err := grid.Place(units, reg, cfg, nil)
		require.NoError(t, err, "注文长度 %d", length)

		perCol := map[[2]int][2]int{}
		for _, pl := range res.Placements {
			k := [2]int{pl.Pos.Page, pl.Pos.Column}
			c := perCol[k]
			if pl.Pos.Sub == grid.SubOuter {
				c[0]++
			} else {
				c[1]++
			}
			perCol[k] = c
		}
		for col, c := range perCol {
			diff := c[0] - c[1]
			assert.LessOrEqual(t, diff, 1, "长度 %d 列 %v", length, col)
			assert.GreaterOrEqual(t, diff, 0, "长度 %d 列 %v 外侧不应少于内侧", length, col)
		}
	}
}

func TestNoteSpillsToNextColumn(t *testing.T) {
	cfg := smallConfig(4, 5)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(14)
	units := append(chars(3), grid.Unit{Kind: grid.UnitNote, NoteID: "jz"})

	res, err := grid.Place(units, reg, cfg, nil)
	require.NoError(t, err)

	// 第 0 列剩 2 行装 4 条，其余 10 条溢到第 1 列。
	outer, inner := notePositions(res)
	require.Len(t, outer, 7)
	require.Len(t, inner, 7)
	counts := map[int]int{}
	for _, pos := range outer {
		counts[pos.Column]++
	}
	assert.Equal(t, 2, counts[0])
	assert.Equal(t, 5, counts[1])
}

func TestNoteContinuationColumnsStartAtRowZero(t *testing.T) {
	cfg := smallConfig(4, 5)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(10)
	anchor := grid.Unit{Kind: grid.UnitNote, NoteID: "jz", Scope: &grid.ScopeIndent{Indent: 2}}

	res, err := grid.Place([]grid.Unit{anchor}, reg, cfg, nil)
	require.NoError(t, err)

	// 起始列按锚点缩进从第 2 行起排；溢出后的续排列不继承缩进，从第 0 行起排。
	outer, _ := notePositions(res)
	require.Len(t, outer, 5)
	assert.Equal(t, grid.Position{Column: 0, Row: grid.R(2), Sub: grid.SubOuter}, outer[0])
	assert.Equal(t, grid.Position{Column: 1, Row: grid.R(0), Sub: grid.SubOuter}, outer[3])
	assert.Equal(t, grid.Position{Column: 1, Row: grid.R(1), Sub: grid.SubOuter}, outer[4])
}

func TestOrphanControlBreaksColumnFirst(t *testing.T) {
	cfg := smallConfig(4, 5)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(2)
	// 第 0 列只剩 0 行，注文应整体换列而不是孤悬列尾。
	units := append(chars(5), grid.Unit{Kind: grid.UnitNote, NoteID: "jz"})

	res, err := grid.Place(units, reg, cfg, nil)
	require.NoError(t, err)

	outer, inner := notePositions(res)
	require.Len(t, outer, 1)
	require.Len(t, inner, 1)
	assert.Equal(t, 1, outer[0].Column)
	assert.Equal(t, grid.R(0), outer[0].Row)
	assert.Equal(t, outer[0].Row, inner[0].Row)
}

func TestOrphanErrorWhenNoColumnCanHoldAPair(t *testing.T) {
	cfg := smallConfig(4, 0)
	reg := grid.NewRegistries()
	reg.Inline["jz"] = chars(1)
	units := []grid.Unit{{Kind: grid.UnitNote, NoteID: "jz"}}

	_, err := grid.Place(units, reg, cfg, nil)
	var orphan *grid.OrphanError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, 0, orphan.UnitIndex)
}
