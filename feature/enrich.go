package feature

import (
	"context"
	"maps"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// EnrichNode 是元信息注入节点：把目录中的展示元信息（标题、类型等）拷贝到 item.Meta，
// 供后续的表达式过滤（item.meta.genre）、多样性重排与展示使用。
//
// Catalog 为空时通过 CatalogFrom 按请求解析（快照替换后自动使用新目录）。
type EnrichNode struct {
	Catalog     core.ItemCatalog
	CatalogFrom func(ctx context.Context) core.ItemCatalog

	// Keys 只注入这些字段，为空表示全部
	Keys []string
}

func (n *EnrichNode) Name() string        { return "feature.enrich" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *EnrichNode) catalog(ctx context.Context) core.ItemCatalog {
	if n.Catalog != nil {
		return n.Catalog
	}
	if n.CatalogFrom != nil {
		return n.CatalogFrom(ctx)
	}
	return nil
}

func (n *EnrichNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	catalog := n.catalog(ctx)
	if catalog == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "feature: no catalog to enrich from")
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		meta := catalog.Meta(it.ID)
		if len(meta) == 0 {
			continue
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any, len(meta))
		}
		if len(n.Keys) == 0 {
			maps.Copy(it.Meta, meta)
			continue
		}
		for _, k := range n.Keys {
			if v, ok := meta[k]; ok {
				it.Meta[k] = v
			}
		}
	}
	return items, nil
}
