// Package flow 是规范化器：把 DSL 的嵌套内容树压平成一条线性单元流，
// 把容器级的偏移信息转换为附着在单元上的显式缩进指令，并装填注文登记表。
// 容器本身不出现在输出流里。
package flow

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/open-guji/luatex-cn-sub004/dsl"
	"github.com/open-guji/luatex-cn-sub004/grid"
)

// Meta 保存文档元信息。
type Meta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// Document 是规范化输出：交给 grid.Place 的全部输入。
type Document struct {
	Meta       Meta
	Config     grid.Config
	Units      []grid.Unit
	Registries *grid.Registries
}

// Options 配置规范化所需的外部依赖。
type Options struct {
	Base     grid.Config   // 几何基线，geometry 段落在其上覆盖
	Measurer grid.Measurer // 外部度量能力，可为空（单元不带尺寸）
	Data     any           // ${path} 插值数据
	Logger   *log.Logger
}

// Lower 把解析后的文档降解为规范化流。
func Lower(doc *dsl.Document, opts Options) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cfg := opts.Base
	if cfg.Columns == 0 {
		cfg = grid.DefaultConfig()
	}
	meta := Meta{Creator: "open-guji"}

	var notes, body *dsl.Block
	for _, section := range doc.Sections {
		switch {
		case section.Meta != nil:
			collectMeta(section.Meta.Block, &meta)
		case section.Geometry != nil:
			var err error
			cfg, err = applyGeometry(section.Geometry.Block, cfg)
			if err != nil {
				return nil, err
			}
		case section.Notes != nil:
			notes = section.Notes.Block
		case section.Body != nil:
			body = section.Body.Block
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("文档缺少 body 段落")
	}

	n := &normalizer{
		cfg:    cfg,
		meas:   opts.Measurer,
		data:   opts.Data,
		logger: logger,
		reg:    grid.NewRegistries(),
	}
	if notes != nil {
		if err := n.collectNotes(notes); err != nil {
			return nil, err
		}
	}
	if err := n.walkBlock(body); err != nil {
		return nil, err
	}

	return &Document{
		Meta:       meta,
		Config:     cfg,
		Units:      n.units,
		Registries: n.reg,
	}, nil
}

func collectMeta(block *dsl.Block, meta *Meta) {
	if block == nil {
		return
	}
	for _, stmt := range block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch strings.ToLower(stmt.Assignment.Key) {
		case "title":
			meta.Title = valueToString(stmt.Assignment.Value)
		case "author":
			meta.Author = valueToString(stmt.Assignment.Value)
		case "subject":
			meta.Subject = valueToString(stmt.Assignment.Value)
		case "creator":
			meta.Creator = valueToString(stmt.Assignment.Value)
		case "keywords":
			meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
		}
	}
}

// applyGeometry 在基线配置上覆盖 geometry 段落的赋值。
func applyGeometry(block *dsl.Block, cfg grid.Config) (grid.Config, error) {
	if block == nil {
		return cfg, nil
	}
	for _, stmt := range block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		key := strings.ToLower(stmt.Assignment.Key)
		raw := valueToString(stmt.Assignment.Value)
		switch key {
		case "columns":
			if v, ok := parseInt(raw); ok {
				cfg.Columns = v
			}
		case "rows":
			if v, ok := parseInt(raw); ok {
				cfg.Rows = v
			}
		case "reserved-every":
			if v, ok := parseInt(raw); ok {
				cfg.ReservedEvery = v
			}
		case "max-pages":
			if v, ok := parseInt(raw); ok {
				cfg.MaxPages = v
			}
		case "top-padding":
			if v, ok := parseInt(raw); ok {
				cfg.TopPadding = v
			}
		case "cell-width":
			if v := parseLength(raw); v > 0 {
				cfg.CellWidth = v
			}
		case "cell-height":
			if v := parseLength(raw); v > 0 {
				cfg.CellHeight = v
			}
		case "packing":
			mode, err := grid.ParsePackMode(raw)
			if err != nil {
				return cfg, err
			}
			cfg.Packing = mode
		case "margin":
			cfg.Margin = resolveMargin(stmt.Assignment.Value, cfg.Margin)
		}
	}
	return cfg, nil
}

// resolveMargin 支持 1 值（四边同宽）与 4 值（上右下左）两种写法。
func resolveMargin(val *dsl.Value, base grid.Margin) grid.Margin {
	if val == nil {
		return base
	}
	if val.Array == nil {
		if v := parseLength(valueToString(val)); v > 0 {
			return grid.Margin{Top: v, Right: v, Bottom: v, Left: v}
		}
		return base
	}
	vals := make([]float64, 0, 4)
	for _, item := range val.Array.Values {
		vals = append(vals, parseLength(valueToString(item)))
	}
	switch len(vals) {
	case 1:
		return grid.Margin{Top: vals[0], Right: vals[0], Bottom: vals[0], Left: vals[0]}
	case 4:
		return grid.Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	default:
		return base
	}
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
