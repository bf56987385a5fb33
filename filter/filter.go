package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// RequestBinder 是可选接口：处理一批物品前按请求绑定一次（例如从存储读取用户排除列表），
// 返回的 Filter 只在本次请求内使用。
type RequestBinder interface {
	Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}
