package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// ExcludeFilter 剔除 items_to_ignore：
//   - IDs：静态列表
//   - rctx.Exclude 与 rctx.Ratings 中已评分的物品
//   - Store 中 {KeyPrefix}:{userID} 保存的用户列表（可选，Store 为空时取 context 中 WithStore 挂载的存储）
type ExcludeFilter struct {
	IDs       []string
	Store     *StoreAdapter
	KeyPrefix string
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

// Bind 合并本次请求的全部排除 ID。
func (f *ExcludeFilter) Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	set := rctx.Ignored()
	set.Add(f.IDs...)
	st := f.Store
	if st == nil {
		st, _ = StoreFrom(ctx)
	}
	if st != nil && f.KeyPrefix != "" && rctx != nil && rctx.UserID != "" {
		ids, err := st.GetUserList(ctx, f.KeyPrefix, rctx.UserID)
		if err != nil {
			return nil, err
		}
		set.Add(ids...)
	}
	return &boundExclude{set: set}, nil
}

// ShouldFilter 未经 Bind 直接调用时逐个检查（每次都会读取存储）。
func (f *ExcludeFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	b, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return b.ShouldFilter(ctx, rctx, item)
}

type boundExclude struct {
	set core.IDSet
}

func (f *boundExclude) Name() string { return "filter.exclude" }

func (f *boundExclude) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	return f.set.Has(item.ID), nil
}

// CatalogFilter 剔除目录中不存在的物品，保证结果中不会出现编造的 ID。
type CatalogFilter struct {
	Catalog core.ItemCatalog
}

func (f *CatalogFilter) Name() string {
	return "filter.catalog"
}

func (f *CatalogFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if f.Catalog == nil {
		return false, nil
	}
	return !f.Catalog.Has(item.ID), nil
}
