// Package canvasrenderer 基于 github.com/tdewolff/canvas 绘制版面并输出 PDF。
// 它同时实现 grid.Measurer：字形尺寸由同一套字体面给出，度量与绘制不会分叉。
package canvasrenderer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/open-guji/luatex-cn-sub004/fonts"
	"github.com/open-guji/luatex-cn-sub004/grid"
	"github.com/open-guji/luatex-cn-sub004/renderer"
	"github.com/open-guji/luatex-cn-sub004/resolve"
)

const (
	frameWidth = 0.6 // 版框线宽 mm
	ruleWidth  = 0.2 // 界行线宽 mm

	mmToPt = 2.83464567
)

// Options 配置画布渲染器。
type Options struct {
	// FontSrc 写作 "name:<登记名>" 或磁盘路径，交给 fonts.Load 解析。
	FontSrc string

	// Config 提供格尺寸，度量阶段据此决定字号。
	Config grid.Config

	// GlyphScale 是主流字号占格高的比例，0 取 0.85。
	GlyphScale float64

	// NoteScale 是夹注与旁注相对主流的缩小比例，0 取 0.5。
	NoteScale float64
}

// Renderer 通过 canvas 绘制放置结果。
type Renderer struct {
	opts Options

	fontMu sync.Mutex
	family *canvas.FontFamily
	faces  map[float64]*canvas.FontFace
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ grid.Measurer     = (*Renderer)(nil)
)

// New 创建画布渲染器。
func New(opts Options) *Renderer {
	if opts.GlyphScale <= 0 {
		opts.GlyphScale = 0.85
	}
	if opts.NoteScale <= 0 {
		opts.NoteScale = 0.5
	}
	return &Renderer{opts: opts, faces: map[float64]*canvas.FontFace{}}
}

// Measure 实现 grid.Measurer。返回值单位为毫米：
// Width 是字形前进宽度，Height/Depth 是基线上下的墨迹高度。
func (r *Renderer) Measure(u *grid.Unit) (grid.Metrics, error) {
	switch u.Kind {
	case grid.UnitChar:
		if u.Text == "" {
			return grid.Metrics{}, nil
		}
		face, err := r.face(r.mainGlyphSize())
		if err != nil {
			return grid.Metrics{}, err
		}
		fm := face.Metrics()
		return grid.Metrics{
			Width:  face.TextWidth(u.Text),
			Height: fm.Ascent,
			Depth:  fm.Descent,
		}, nil
	case grid.UnitBlock:
		return grid.Metrics{
			Width:  float64(u.Span.Cols) * r.opts.Config.CellWidth,
			Height: float64(u.Span.Rows) * r.opts.Config.CellHeight,
		}, nil
	default:
		return grid.Metrics{}, nil
	}
}

// Render 输出多页 PDF。
func (r *Renderer) Render(in *renderer.Input) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("渲染输入为空")
	}
	cfg := in.Config
	pages := in.Pages
	if pages <= 0 {
		pages = 1
	}

	byPage := make([][]resolve.Placed, pages)
	for _, p := range in.Placed {
		if p.Page < 0 || p.Page >= pages {
			return nil, fmt.Errorf("放置结果落在页 %d，超出总页数 %d", p.Page, pages)
		}
		byPage[p.Page] = append(byPage[p.Page], p)
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, cfg.PageWidth(), cfg.PageHeight(), nil)
	r.applyMeta(writer, in)
	for i := 0; i < pages; i++ {
		if i > 0 {
			writer.NewPage(cfg.PageWidth(), cfg.PageHeight())
		}
		c := canvas.New(cfg.PageWidth(), cfg.PageHeight())
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 与坐标解算保持左上角原点

		r.drawFrame(ctx, cfg)
		if err := r.drawPlacements(ctx, byPage[i]); err != nil {
			return nil, err
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, in *renderer.Input) {
	if writer == nil {
		return
	}
	meta := in.Meta
	writer.SetInfo(meta.Title, meta.Subject, strings.Join(meta.Keywords, ", "), meta.Author, meta.Creator)
}

// drawFrame 绘制版框与界行。保留列以双细线标出。
func (r *Renderer) drawFrame(ctx *canvas.Context, cfg grid.Config) {
	left := cfg.Margin.Left
	top := cfg.Margin.Top
	width := float64(cfg.Columns) * cfg.CellWidth
	height := float64(cfg.Rows) * cfg.CellHeight

	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(frameWidth)
	ctx.DrawPath(left, top, canvas.Rectangle(width, height))

	ctx.SetStrokeWidth(ruleWidth)
	for col := 1; col < cfg.Columns; col++ {
		x := left + float64(col)*cfg.CellWidth
		line := &canvas.Path{}
		line.MoveTo(0, 0)
		line.LineTo(0, height)
		ctx.DrawPath(x, top, line)
	}
	for col := 0; col < cfg.Columns; col++ {
		if !cfg.Reserved(col) {
			continue
		}
		// 保留列内再画一条细线，形成双线栏。
		x := resolve.CellX(cfg, col) + cfg.CellWidth/2
		line := &canvas.Path{}
		line.MoveTo(0, 0)
		line.LineTo(0, height)
		ctx.DrawPath(x, top, line)
	}
}

func (r *Renderer) drawPlacements(ctx *canvas.Context, placed []resolve.Placed) error {
	for _, p := range placed {
		if p.Placement == nil || p.Placement.Unit == nil {
			continue
		}
		u := p.Placement.Unit
		switch u.Kind {
		case grid.UnitChar:
			if u.Text == "" {
				continue
			}
			size := r.mainGlyphSize()
			if p.Placement.Layer == grid.LayerNote || p.Placement.Layer == grid.LayerSide {
				size = r.mainGlyphSize() * r.opts.NoteScale
			}
			if err := r.drawGlyph(ctx, p, u.Text, size); err != nil {
				return err
			}
		case grid.UnitBlock:
			if err := r.drawBlock(ctx, p, u); err != nil {
				return err
			}
		case grid.UnitMark:
			if err := r.drawGlyph(ctx, p, u.MarkID, r.mainGlyphSize()); err != nil {
				return err
			}
		}
	}
	return nil
}

// drawGlyph 把单个字形居中画进单元框。
func (r *Renderer) drawGlyph(ctx *canvas.Context, p resolve.Placed, text string, size float64) error {
	face, err := r.face(size)
	if err != nil {
		return err
	}
	line := canvas.NewTextLine(face, text, canvas.Center)
	fm := face.Metrics()
	baseline := p.Y + (p.H+fm.Ascent-fm.Descent)/2
	ctx.DrawText(p.X+p.W/2, baseline, line)
	return nil
}

// drawBlock 画出块的外框，并把内文按竖排从右向左填入块内的格。
func (r *Renderer) drawBlock(ctx *canvas.Context, p resolve.Placed, u *grid.Unit) error {
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(ruleWidth)
	ctx.DrawPath(p.X, p.Y, canvas.Rectangle(p.W, p.H))

	if len(u.Inner) == 0 || u.Span.Rows <= 0 {
		return nil
	}
	cw := r.opts.Config.CellWidth
	ch := r.opts.Config.CellHeight
	col, row := 0, 0
	for i := range u.Inner {
		inner := &u.Inner[i]
		if inner.Kind != grid.UnitChar || inner.Text == "" {
			if inner.Kind == grid.UnitChar {
				row++
			}
			if row >= u.Span.Rows {
				row = 0
				col++
			}
			continue
		}
		if col >= u.Span.Cols {
			break
		}
		cell := resolve.Placed{
			X: p.X + p.W - float64(col+1)*cw,
			Y: p.Y + float64(row)*ch,
			W: cw,
			H: ch,
		}
		if err := r.drawGlyph(ctx, cell, inner.Text, r.mainGlyphSize()); err != nil {
			return err
		}
		row++
		if row >= u.Span.Rows {
			row = 0
			col++
		}
	}
	return nil
}

func (r *Renderer) mainGlyphSize() float64 {
	ch := r.opts.Config.CellHeight
	if ch <= 0 {
		ch = 10
	}
	return ch * r.opts.GlyphScale
}

// face 按字号缓存字体面。字号单位为毫米，交给 canvas 时换算为 pt。
func (r *Renderer) face(size float64) (*canvas.FontFace, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if face, ok := r.faces[size]; ok {
		return face, nil
	}
	if r.family == nil {
		if r.opts.FontSrc == "" {
			return nil, fmt.Errorf("渲染器缺少字体来源")
		}
		data, err := fonts.Load(r.opts.FontSrc)
		if err != nil {
			return nil, err
		}
		family := canvas.NewFontFamily("guji-body")
		if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
			return nil, fmt.Errorf("加载字体 %s 失败: %w", r.opts.FontSrc, err)
		}
		r.family = family
	}
	face := r.family.Face(size*mmToPt, canvas.Black, canvas.FontRegular, canvas.FontNormal)
	r.faces[size] = face
	return face, nil
}
