package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
)

// Source 表示一个可复用的召回源（内容 / 协同过滤 / 热门 / 混合）。
// 所有召回源同时实现 pipeline.Node，可以直接放进 Pipeline。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// Models 提供一份不可变快照中的模型。
// 通过配置构建的召回节点不持有模型，而是每次请求从 context 解析，
// 因此快照整体替换后，下一次请求自动使用新模型。
type Models interface {
	Features() *feature.Store
	CF() *CFModel
	Popularity() *Popularity
}

type modelsKey struct{}

// WithModels 把快照挂到 context 上。
func WithModels(ctx context.Context, m Models) context.Context {
	return context.WithValue(ctx, modelsKey{}, m)
}

// ModelsFrom 从 context 读取快照。
func ModelsFrom(ctx context.Context) (Models, bool) {
	m, ok := ctx.Value(modelsKey{}).(Models)
	return m, ok && m != nil
}

func unavailable(module, what string) error {
	return core.NewDomainError(module, core.ErrorCodeUnavailable, module+": no "+what+" available")
}
