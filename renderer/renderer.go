package renderer

import (
	"github.com/open-guji/luatex-cn-sub004/flow"
	"github.com/open-guji/luatex-cn-sub004/grid"
	"github.com/open-guji/luatex-cn-sub004/resolve"
)

// Input 汇集渲染所需的全部数据：元信息、版面几何与坐标化的放置结果。
type Input struct {
	Meta   flow.Meta
	Config grid.Config
	Pages  int
	Placed []resolve.Placed
}

// Renderer 将放置结果输出为最终文件，例如 PDF 字节切片。
type Renderer interface {
	Render(in *Input) ([]byte, error)
}
