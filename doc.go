// Package bookrec 是一个书籍混合推荐引擎。
//
// 设计要点：
// - 三个模型：基于内容（TF-IDF 画像 + 余弦相似度）、协同过滤（截断 SVD）、热门
// - 混合融合：两路候选按物品 ID 外连接，加权求和后确定性排序（分数降序、ID 升序）
// - 快照：特征库、分解结果、热门榜单构成不可变快照，交互变化时整体重建并原子替换
// - Pipeline-first: 召回 / 过滤 / 重排都是 Node，可以用 YAML 配置串联
// - 失败可区分：冷启动、空画像、缺失物品都有明确的错误码，由服务回退到热门推荐
package bookrec

import (
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/service"
)

// 轻量 facade：便于直接 import "bookrec" 使用核心抽象。
type (
	Pipeline    = pipeline.Pipeline
	Node        = pipeline.Node
	Kind        = pipeline.Kind
	Recommender = service.Recommender
	Request     = service.Request
	Response    = service.Response
)

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)

// NewRecommender 见 service.NewRecommender。
var NewRecommender = service.NewRecommender
