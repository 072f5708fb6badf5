package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-guji/luatex-cn-sub004/dsl"
	"github.com/open-guji/luatex-cn-sub004/flow"
	"github.com/open-guji/luatex-cn-sub004/grid"
)

// stubMeasurer 给所有可度量单元一个固定尺寸。
type stubMeasurer struct{}

func (stubMeasurer) Measure(u *grid.Unit) (grid.Metrics, error) {
	return grid.Metrics{Width: 8, Height: 7, Depth: 1}, nil
}

const sampleDoc = `
doc Shiji v1 {
  meta {
    title: "史記"
    author: "司馬遷"
    keywords: ["紀傳", "正史"]
  }

  geometry {
    columns: 6
    rows: 12
    cell-width: 10mm
    cell-height: 10mm
    packing: "tight"
    margin: [20mm, 18mm, 20mm, 18mm]
  }

  notes {
    note jz1 {
      "小字注文"
    }
    side p1 {
      offset: 1
      "眉批"
    }
  }

  body {
    section 2 1 {
      "太史公曰"
    }
    flush 0
    "甲　乙"
    space 2
    break column
    note jz1
    side p1
    block 2 3 {
      "圖"
    }
    mark fish
  }
}
`

func lowerSample(t *testing.T) *flow.Document {
	t.Helper()
	doc, err := dsl.ParseString(sampleDoc)
	require.NoError(t, err)
	lowered, err := flow.Lower(doc, flow.Options{Measurer: stubMeasurer{}})
	require.NoError(t, err)
	return lowered
}

func TestLowerCollectsMetaAndGeometry(t *testing.T) {
	lowered := lowerSample(t)

	assert.Equal(t, "史記", lowered.Meta.Title)
	assert.Equal(t, "司馬遷", lowered.Meta.Author)
	assert.Equal(t, []string{"紀傳", "正史"}, lowered.Meta.Keywords)

	cfg := lowered.Config
	assert.Equal(t, 6, cfg.Columns)
	assert.Equal(t, 12, cfg.Rows)
	assert.Equal(t, grid.PackTight, cfg.Packing)
	assert.InDelta(t, 18, cfg.Margin.Right, 1e-9)
	assert.InDelta(t, 20, cfg.Margin.Top, 1e-9)
}

func TestLowerFlattensBodyToUnitStream(t *testing.T) {
	lowered := lowerSample(t)
	units := lowered.Units
	require.Len(t, units, 14)

	kinds := make([]grid.UnitKind, len(units))
	for i, u := range units {
		kinds[i] = u.Kind
	}
	assert.Equal(t, []grid.UnitKind{
		grid.UnitChar, grid.UnitChar, grid.UnitChar, grid.UnitChar, // 太史公曰
		grid.UnitChar, grid.UnitChar, grid.UnitChar, // 甲、全角空格占位、乙
		grid.UnitChar, grid.UnitChar, // space 2
		grid.UnitBreak,
		grid.UnitNote,
		grid.UnitSideNote,
		grid.UnitBlock,
		grid.UnitMark,
	}, kinds)

	assert.Equal(t, "太", units[0].Text)
	assert.Equal(t, "", units[5].Text, "全角空格应成为零内容占位")
	assert.Equal(t, grid.BreakColumn, units[9].Break)
	assert.Equal(t, "jz1", units[10].NoteID)
	assert.Equal(t, "p1", units[11].NoteID)
	assert.Equal(t, grid.Span{Cols: 2, Rows: 3}, units[12].Span)
	require.Len(t, units[12].Inner, 1)
	assert.Equal(t, "fish", units[13].MarkID)
}

func TestLowerSectionScopeAndSectionIDs(t *testing.T) {
	lowered := lowerSample(t)
	units := lowered.Units

	// 段落容器不入流，其缩进附着在内部单元上。
	require.NotNil(t, units[0].Scope)
	assert.Equal(t, 2, units[0].Scope.Indent)
	assert.Equal(t, 3, units[0].Scope.FirstIndent)
	assert.True(t, units[0].Scope.HasFirst)
	assert.Equal(t, 1, units[0].Section)

	// 段落结束后回到外层：无作用域缩进，段落编号归零。
	assert.Nil(t, units[4].Scope)
	assert.Equal(t, 0, units[4].Section)
}

func TestLowerFlushAttachesForcedIndentOnce(t *testing.T) {
	lowered := lowerSample(t)
	units := lowered.Units

	require.NotNil(t, units[4].Forced, "flush 后首个落格单元应携带强制缩进")
	assert.Equal(t, 0, *units[4].Forced)
	assert.Nil(t, units[5].Forced)
	assert.Nil(t, units[6].Forced)
}

func TestLowerFillsRegistries(t *testing.T) {
	lowered := lowerSample(t)
	reg := lowered.Registries

	inline, ok := reg.Inline["jz1"]
	require.True(t, ok)
	assert.Len(t, inline, 4)
	assert.Equal(t, "小", inline[0].Text)

	side, ok := reg.Side["p1"]
	require.True(t, ok)
	assert.Equal(t, 1, side.YOffset)
	assert.Len(t, side.Units, 2)
}

func TestLowerMeasuresPlaceableUnits(t *testing.T) {
	lowered := lowerSample(t)
	units := lowered.Units

	assert.InDelta(t, 8, units[0].Metrics.Width, 1e-9)
	assert.InDelta(t, 7, units[0].Metrics.Height, 1e-9)
	// 零内容占位不度量。
	assert.Zero(t, units[5].Metrics.Width)
}

func TestLowerShiftAccumulatesRoundedCells(t *testing.T) {
	src := `
doc S v1 {
  geometry {
    cell-width: 10mm
  }
  body {
    shift 24mm
    shift 26mm
    "甲"
  }
}
`
	doc, err := dsl.ParseString(src)
	require.NoError(t, err)
	lowered, err := flow.Lower(doc, flow.Options{})
	require.NoError(t, err)

	require.Len(t, lowered.Units, 1)
	require.NotNil(t, lowered.Units[0].Scope)
	// round(24/10) + round(26/10) = 2 + 3
	assert.Equal(t, 5, lowered.Units[0].Scope.Indent)
}

func TestLowerAnonymousInlineNoteGetsGeneratedID(t *testing.T) {
	src := `
doc S v1 {
  body {
    "甲"
    note {
      "注"
    }
  }
}
`
	doc, err := dsl.ParseString(src)
	require.NoError(t, err)
	lowered, err := flow.Lower(doc, flow.Options{})
	require.NoError(t, err)

	require.Len(t, lowered.Units, 2)
	anchor := lowered.Units[1]
	require.Equal(t, grid.UnitNote, anchor.Kind)
	require.NotEmpty(t, anchor.NoteID)
	units, ok := lowered.Registries.Inline[anchor.NoteID]
	require.True(t, ok)
	assert.Len(t, units, 1)
}

func TestLowerRejectsUnknownBodyCommand(t *testing.T) {
	src := `
doc S v1 {
  body {
    rotate 90
  }
}
`
	doc, err := dsl.ParseString(src)
	require.NoError(t, err)
	_, err = flow.Lower(doc, flow.Options{})
	require.Error(t, err)
}

func TestLowerRequiresBodySection(t *testing.T) {
	src := `
doc S v1 {
  meta {
    title: "空"
  }
}
`
	doc, err := dsl.ParseString(src)
	require.NoError(t, err)
	_, err = flow.Lower(doc, flow.Options{})
	require.Error(t, err)
}

func TestLowerEndToEndPlacement(t *testing.T) {
	lowered := lowerSample(t)
	res, err := grid.Place(lowered.Units, lowered.Registries, lowered.Config, nil)
	require.NoError(t, err)
	require.NotZero(t, res.Pages)

	// 段落首列首行缩进 3（缩进 2 + 首行 1）。
	assert.Equal(t, grid.R(3), res.ByIndex[0].Row)
}
