// Package fonts 提供按名字检索字体字节的登记表。
// 字体可用字节或路径注册；渲染器按 name: 前缀或裸路径加载。
package fonts

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Resource 是一份字体来源：Bytes 优先，其次按 Path 读盘。
type Resource struct {
	Bytes []byte
	Path  string
}

var (
	mu       sync.RWMutex
	registry = map[string][]byte{}
)

// Register 登记一个命名字体。重名时后注册者覆盖。
func Register(name string, res Resource) error {
	if name == "" {
		return fmt.Errorf("字体登记需要名字")
	}
	data := res.Bytes
	if len(data) == 0 {
		if res.Path == "" {
			return fmt.Errorf("字体 %s 缺少字节与路径", name)
		}
		var err error
		data, err = os.ReadFile(res.Path)
		if err != nil {
			return fmt.Errorf("读取字体 %s（%s）失败: %w", name, res.Path, err)
		}
	}
	mu.Lock()
	registry[name] = data
	mu.Unlock()
	return nil
}

// Load 返回字体字节。src 可写为 "name:<登记名>" 或磁盘路径。
func Load(src string) ([]byte, error) {
	if name, ok := strings.CutPrefix(src, "name:"); ok {
		mu.RLock()
		data, found := registry[name]
		mu.RUnlock()
		if !found {
			return nil, fmt.Errorf("字体 name:%s 未登记", name)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}
