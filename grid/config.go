package grid

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// PackMode 控制放置完成后的整列重排。
type PackMode int

const (
	PackNone    PackMode = iota // 保持放置原样
	PackTight                   // 紧排：去掉占用跳格留下的空洞
	PackNatural                 // 匀排：列内剩余空间平均分摊（产生分数行）
)

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `toml:"top" json:"top"`
	Right  float64 `toml:"right" json:"right"`
	Bottom float64 `toml:"bottom" json:"bottom"`
	Left   float64 `toml:"left" json:"left"`
}

// Config 是一次放置运行的全量版面几何，运行期间不可变。
type Config struct {
	Columns       int     `toml:"columns" json:"columns"`              // 每页列数（含保留列）
	Rows          int     `toml:"rows" json:"rows"`                    // 每列行数上限
	ReservedEvery int     `toml:"reserved-every" json:"reservedEvery"` // 每 N 个内容列后插一个保留列，0 表示无
	CellWidth     float64 `toml:"cell-width" json:"cellWidth"`         // 格宽 mm
	CellHeight    float64 `toml:"cell-height" json:"cellHeight"`       // 格高 mm
	MaxPages      int     `toml:"max-pages" json:"maxPages"`           // 0 表示不设上限
	TopPadding    int     `toml:"top-padding" json:"topPadding"`       // 旁注距页顶的最小行数
	Margin        Margin  `toml:"margin" json:"margin"`
	Packing       PackMode `toml:"-" json:"packing"`

	// PackingName 是 TOML 预设里的重排模式名：none/tight/natural。
	PackingName string `toml:"packing" json:"-"`
}

// DefaultConfig 返回常见的半叶八行二十字版式。
func DefaultConfig() Config {
	return Config{
		Columns:       8,
		Rows:          20,
		ReservedEvery: 0,
		CellWidth:     10,
		CellHeight:    10,
		Margin:        Margin{Top: 20, Right: 20, Bottom: 20, Left: 20},
	}
}

// Reserved 报告列 col 是否为保留列（栏饰列，主流永不落格）。
func (c Config) Reserved(col int) bool {
	if c.ReservedEvery <= 0 {
		return false
	}
	return (col+1)%(c.ReservedEvery+1) == 0
}

// ContentColumns 返回每页可承载主流内容的列数。
func (c Config) ContentColumns() int {
	if c.ReservedEvery <= 0 {
		return c.Columns
	}
	n := 0
	for col := 0; col < c.Columns; col++ {
		if !c.Reserved(col) {
			n++
		}
	}
	return n
}

// PageWidth 返回物理页宽（mm）。
func (c Config) PageWidth() float64 {
	return c.Margin.Left + c.Margin.Right + float64(c.Columns)*c.CellWidth
}

// PageHeight 返回物理页高（mm）。
func (c Config) PageHeight() float64 {
	return c.Margin.Top + c.Margin.Bottom + float64(c.Rows)*c.CellHeight
}

// Validate 校验几何参数。
func (c Config) Validate() error {
	if c.Columns <= 0 {
		return fmt.Errorf("版面配置无效：列数必须为正，实际 %d", c.Columns)
	}
	if c.Rows < 0 {
		return fmt.Errorf("版面配置无效：行数不能为负，实际 %d", c.Rows)
	}
	if c.CellWidth <= 0 || c.CellHeight <= 0 {
		return fmt.Errorf("版面配置无效：格尺寸必须为正，实际 %g×%g", c.CellWidth, c.CellHeight)
	}
	if c.ContentColumns() == 0 {
		return fmt.Errorf("版面配置无效：所有列均为保留列")
	}
	return nil
}

// LoadPreset 从 TOML 预设文件读取版面几何。
// 未出现的键保留 base 中的取值，因此预设可以只写差异项。
func LoadPreset(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("读取版面预设 %s 失败: %w", path, err)
	}
	cfg := base
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("解析版面预设 %s 失败: %w", path, err)
	}
	if cfg.PackingName != "" {
		mode, err := ParsePackMode(cfg.PackingName)
		if err != nil {
			return base, fmt.Errorf("版面预设 %s: %w", path, err)
		}
		cfg.Packing = mode
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// ParsePackMode 解析重排模式名。
func ParsePackMode(name string) (PackMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return PackNone, nil
	case "tight":
		return PackTight, nil
	case "natural":
		return PackNatural, nil
	default:
		return PackNone, fmt.Errorf("未知的重排模式：%s", name)
	}
}
