package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// 配置驱动的 Pipeline 需要 import _ "github.com/rushteam/bookrec/config/builders"，
// 由其 init 注册 recall.content、recall.cf、recall.popularity、recall.hybrid、filter 等节点。

// NodeBuilder 与 pipeline.NodeBuilder 一致。
type NodeBuilder = pipeline.NodeBuilder

var registry = struct {
	sync.RWMutex
	builders map[string]NodeBuilder
}{builders: make(map[string]NodeBuilder)}

// Register 注册一种 Node 的构建逻辑。同名类型后注册的覆盖先注册的。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	registry.Lock()
	defer registry.Unlock()
	registry.builders[typeName] = builder
}

func lookup(typeName string) bool {
	registry.RLock()
	defer registry.RUnlock()
	_, ok := registry.builders[typeName]
	return ok
}

// SupportedTypes 返回已注册的 Node 类型（升序）。
func SupportedTypes() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.builders))
}

// DefaultFactory 用当前注册表构建 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	registry.RLock()
	defer registry.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range registry.builders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 在构建前检查配置：
//   - 至少一个节点，且每个节点都声明了已注册的类型
//   - 第一个节点必须是召回节点（recall.*），否则链路没有候选来源
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil || len(cfg.Pipeline.Nodes) == 0 {
		return core.NewInvalidInputError(core.ModuleService, "pipeline has no nodes")
	}
	for i, nc := range cfg.Pipeline.Nodes {
		if nc.Type == "" {
			return core.NewInvalidInputError(core.ModuleService, fmt.Sprintf("node %d: missing type", i))
		}
		if !lookup(nc.Type) {
			return core.NewInvalidInputError(core.ModuleService,
				fmt.Sprintf("node %d: unsupported type %q (supported: %v)", i, nc.Type, SupportedTypes()))
		}
	}
	if first := cfg.Pipeline.Nodes[0].Type; !strings.HasPrefix(first, "recall.") {
		return core.NewInvalidInputError(core.ModuleService,
			fmt.Sprintf("first node must be a recall node, got %q", first))
	}
	return nil
}
