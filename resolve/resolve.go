// Package resolve 把离散格位翻译为物理页面坐标。
// 页面坐标系原点在左上角，x 向右、y 向下，单位毫米；渲染后端再转入
// 各自的绘图坐标系。阅读方向从右向左，所以第 0 列落在页面最右侧。
package resolve

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/open-guji/luatex-cn-sub004/grid"
)

// HAlign 控制字形在格内的水平对齐。
type HAlign int

const (
	HCenter HAlign = iota
	HLeft
	HRight
)

// VAlign 控制字形在格内的竖向对齐。
type VAlign int

const (
	VCenter VAlign = iota
	VTop
	VBottom
)

// Options 配置格内对齐方式，零值为水平竖向双居中。
type Options struct {
	HAlign HAlign
	VAlign VAlign
}

// Placed 是一条放置结果的物理坐标。
type Placed struct {
	Placement *grid.Placement
	Page      int

	// 单元框（格或块的外接矩形）左上角与尺寸。
	X, Y float64
	W, H float64

	// 字形锚点：GlyphX 为字形左缘，GlyphY 为基线高度。
	GlyphX, GlyphY float64
}

// Resolve 将放置结果逐条换算为物理坐标，按放置顺序返回。
// 各条结果互不依赖，换算按分片并行执行。
func Resolve(res *grid.Result, opts Options) ([]Placed, error) {
	if res == nil {
		return nil, fmt.Errorf("放置结果为空")
	}
	cfg := res.Config
	out := make([]Placed, len(res.Placements))

	shards := runtime.GOMAXPROCS(0)
	if shards > len(res.Placements) {
		shards = len(res.Placements)
	}
	if shards < 1 {
		shards = 1
	}
	chunk := (len(res.Placements) + shards - 1) / shards

	var g errgroup.Group
	for s := 0; s < shards; s++ {
		lo := s * chunk
		hi := lo + chunk
		if hi > len(res.Placements) {
			hi = len(res.Placements)
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				p, err := resolveOne(&res.Placements[i], cfg, opts)
				if err != nil {
					return err
				}
				out[i] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveOne(pl *grid.Placement, cfg grid.Config, opts Options) (Placed, error) {
	pos := pl.Pos
	if pos.Page < 0 || pos.Column < 0 || pos.Column >= cfg.Columns {
		return Placed{}, fmt.Errorf("格位越界：页 %d 列 %d", pos.Page, pos.Column)
	}

	x := CellX(cfg, pos.Column)
	y := cfg.Margin.Top + pos.Row.Float64()*cfg.CellHeight
	w := cfg.CellWidth
	h := cfg.CellHeight

	if pl.Unit != nil && pl.Unit.Kind == grid.UnitBlock {
		// 块向左侧展开：外接矩形的左缘由块的最左一列决定。
		span := pl.Unit.Span
		x = CellX(cfg, pos.Column+span.Cols-1)
		w = float64(span.Cols) * cfg.CellWidth
		h = float64(span.Rows) * cfg.CellHeight
	}

	switch pos.Sub {
	case grid.SubOuter:
		// 右半列先读。
		x += cfg.CellWidth / 2
		w = cfg.CellWidth / 2
	case grid.SubInner:
		w = cfg.CellWidth / 2
	}

	p := Placed{
		Placement: pl,
		Page:      pos.Page,
		X:         x,
		Y:         y,
		W:         w,
		H:         h,
	}
	if pl.Unit != nil {
		alignGlyph(&p, pl.Unit.Metrics, opts)
	}
	return p, nil
}

// CellX 返回第 col 列的物理左缘。列序从右向左，因此做镜像换算。
func CellX(cfg grid.Config, col int) float64 {
	return cfg.Margin.Left + float64(cfg.Columns-1-col)*cfg.CellWidth
}

// alignGlyph 按对齐规则算出字形锚点。Height/Depth 分别是基线之上与
// 之下的墨迹高度。
func alignGlyph(p *Placed, m grid.Metrics, opts Options) {
	switch opts.HAlign {
	case HLeft:
		p.GlyphX = p.X
	case HRight:
		p.GlyphX = p.X + p.W - m.Width
	default:
		p.GlyphX = p.X + (p.W-m.Width)/2
	}
	switch opts.VAlign {
	case VTop:
		p.GlyphY = p.Y + m.Height
	case VBottom:
		p.GlyphY = p.Y + p.H - m.Depth
	default:
		p.GlyphY = p.Y + (p.H+m.Height-m.Depth)/2
	}
}
