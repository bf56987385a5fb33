// Package rerank 提供确定性排序与截断：分数降序，平分时物品 ID 升序。
package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// SortByScore 原地稳定排序：分数降序，平分时按 core.CompareIDs 升序。
// nil 元素被移除。同样的输入总是得到同样的顺序。
func SortByScore(items []*core.Item) []*core.Item {
	out := items[:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return core.RankLess(out[i], out[j])
	})
	return out
}

// TopN 返回前 n 个元素，n <= 0 或不足 n 个时返回全部。不排序。
func TopN(items []*core.Item, n int) []*core.Item {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// TopNNode 先按 SortByScore 排序，再截取前 N 个物品。
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Hybrid{...},
//	        &filter.FilterNode{...},
//	        &rerank.TopNNode{N: 10},
//	    },
//	}
type TopNNode struct {
	// N 要保留的物品数量，N <= 0 表示不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	return TopN(SortByScore(items), n.N), nil
}
