package rerank

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// Diversity 按类型（genre）限制同类物品数量：每个类型最多保留 MaxPerGroup 本，
// 保持输入顺序，不改变分数。输入应已排好序。
//
// 类型来源优先级：
//   - label[Key].Value
//   - meta[Key]（string）
//
// 没有类型的物品不受限制。
type Diversity struct {
	Key         string // 默认 "genre"
	MaxPerGroup int    // 默认 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) group(it *core.Item, key string) string {
	if lbl, ok := it.Labels[key]; ok && lbl.Value != "" {
		return lbl.Value
	}
	if s, ok := it.Meta[key].(string); ok {
		return s
	}
	return ""
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	key := n.Key
	if key == "" {
		key = "genre"
	}
	limit := n.MaxPerGroup
	if limit <= 0 {
		limit = 1
	}

	counts := make(map[string]int, 16)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		g := n.group(it, key)
		if g == "" {
			out = append(out, it)
			continue
		}
		if counts[g] >= limit {
			continue
		}
		counts[g]++
		out = append(out, it)
	}
	return out, nil
}
