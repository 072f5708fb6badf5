package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/open-guji/luatex-cn-sub004/dsl"
	"github.com/open-guji/luatex-cn-sub004/flow"
	"github.com/open-guji/luatex-cn-sub004/grid"
	"github.com/open-guji/luatex-cn-sub004/renderer"
	canvasrenderer "github.com/open-guji/luatex-cn-sub004/renderer/canvas"
	"github.com/open-guji/luatex-cn-sub004/resolve"
)

var (
	flagIn      string
	flagOut     string
	flagPreset  string
	flagFont    string
	flagDebug   string
	flagData    string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guji",
	Short: "竖排古籍排版引擎",
	Long:  "解析 .guji 文档，按竖排从右向左的格位规则放置内容，输出 PDF。",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&flagIn, "in", "i", "examples/demo.guji", "DSL 文件路径")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "output/demo.pdf", "PDF 输出路径")
	rootCmd.Flags().StringVar(&flagPreset, "preset", "", "版面几何预设 TOML 路径")
	rootCmd.Flags().StringVar(&flagFont, "font", "", "字体来源（name:<登记名> 或路径）")
	rootCmd.Flags().StringVar(&flagDebug, "debug", "", "放置调试 JSON 输出路径")
	rootCmd.Flags().StringVar(&flagData, "data", "", "绑定到 ${} 插值的 JSON 数据或 @文件路径")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "输出调试日志")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal("生成失败", "err", err)
	}
}

// run 串联解析、规范化、放置、坐标解算与渲染。
func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Level:           log.InfoLevel,
	})
	if flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}

	data, err := loadData(flagData)
	if err != nil {
		return err
	}

	file, err := os.Open(flagIn)
	if err != nil {
		return fmt.Errorf("无法打开 DSL 文件 %s: %w", flagIn, err)
	}
	doc, err := dsl.Parse(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	base := grid.DefaultConfig()
	if flagPreset != "" {
		base, err = grid.LoadPreset(flagPreset, base)
		if err != nil {
			return err
		}
	}

	// 第一遍不带度量，只为取得 geometry 段落覆盖后的最终版面；
	// 字号取决于格高，度量器要等最终版面定下来才能建。
	probe, err := flow.Lower(doc, flow.Options{Base: base, Data: data, Logger: logger})
	if err != nil {
		return err
	}

	fontSrc := flagFont
	if fontSrc == "" {
		fontSrc = defaultFont(flagIn)
	}
	r := canvasrenderer.New(canvasrenderer.Options{
		FontSrc: fontSrc,
		Config:  probe.Config,
	})

	lowered, err := flow.Lower(doc, flow.Options{
		Base:     base,
		Measurer: r,
		Data:     data,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Debug("规范化完成", "units", len(lowered.Units),
		"inline", len(lowered.Registries.Inline), "side", len(lowered.Registries.Side))

	result, err := grid.Place(lowered.Units, lowered.Registries, lowered.Config, logger)
	if err != nil {
		return err
	}
	grid.Repack(result, lowered.Config.Packing)
	logger.Debug("放置完成", "placements", len(result.Placements), "pages", result.Pages)

	if flagDebug != "" {
		if err := grid.WriteDebugJSON(result, flagDebug); err != nil {
			return err
		}
	}

	placed, err := resolve.Resolve(result, resolve.Options{})
	if err != nil {
		return err
	}

	pdfBytes, err := r.Render(&renderer.Input{
		Meta:   lowered.Meta,
		Config: lowered.Config,
		Pages:  result.Pages,
		Placed: placed,
	})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(flagOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建输出目录 %s 失败: %w", dir, err)
		}
	}
	if err := os.WriteFile(flagOut, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", flagOut, err)
	}
	logger.Info("已生成 PDF", "path", flagOut)
	return nil
}

// loadData 解析 --data：裸 JSON 或 @路径 指向的 JSON 文件。
func loadData(arg string) (any, error) {
	if arg == "" {
		return nil, nil
	}
	raw := []byte(arg)
	if arg[0] == '@' {
		var err error
		raw, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("读取数据文件 %s 失败: %w", arg[1:], err)
		}
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

// defaultFont 在输入文件旁寻找 fonts/ 目录下的第一款字体。
func defaultFont(inputPath string) string {
	dir := filepath.Join(filepath.Dir(inputPath), "fonts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if ext == ".ttf" || ext == ".otf" {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
