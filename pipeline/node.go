package pipeline

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// Kind 用于标记 Node 类型，方便观测与按阶段打点。
type Kind string

const (
	KindRecall Kind = "recall" // 召回阶段：内容 / 协同过滤 / 热门 / 混合
	KindFilter Kind = "filter" // 过滤阶段：剔除已读、目录外、不满足表达式的候选
	KindReRank Kind = "rerank" // 重排阶段：确定性排序与截断
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 items -> 输出 items”的形态：Recall 生成、Filter 剔除、ReRank 排序截断。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node。
type NodeBuilder func(cfg map[string]any) (Node, error)
