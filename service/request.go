package service

import "github.com/rushteam/bookrec/core"

// Strategy 是推荐策略。
type Strategy string

const (
	StrategyAuto          Strategy = "auto"          // 两个模型都能服务时用混合，否则用能服务的那个，都不能时用热门
	StrategyContent       Strategy = "content"       // 基于内容（TF-IDF 画像 + 余弦相似度）
	StrategyCollaborative Strategy = "collaborative" // 协同过滤（截断 SVD）
	StrategyHybrid        Strategy = "hybrid"        // 内容 + 协同过滤加权融合
	StrategyPopularity    Strategy = "popularity"    // 热门
	StrategyPipeline      Strategy = "pipeline"      // 按配置的 Node 链推荐
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyAuto, StrategyContent, StrategyCollaborative, StrategyHybrid, StrategyPopularity:
		return true
	}
	return false
}

// Request 是一次推荐请求。
type Request struct {
	UserID string

	// Ratings 是用户本次给出的评分（item_id -> rating）。
	// 为空且用户在快照中有历史交互时，使用其历史评分构建内容画像。
	Ratings map[string]float64

	// Exclude 是 items_to_ignore；已评分物品会被自动排除
	Exclude []string

	// TopN 返回数量，0 表示使用配置的默认值
	TopN int

	// Strategy 为空时使用配置的默认策略
	Strategy Strategy

	// Genres 非空时只返回这些类型的书（按目录元信息 genre 过滤）
	Genres []string

	// Params 透传给 Pipeline（rctx.params）
	Params map[string]any
}

// Response 是推荐结果。
type Response struct {
	UserID string
	Items  []*core.Item

	// Strategy 是实际产出结果的策略；发生回退时为 popularity
	Strategy Strategy

	// Requested 是解析后的请求策略（auto 会被解析为具体策略）
	Requested Strategy

	// Fallback 为 true 表示请求策略失败后由热门推荐兜底，FallbackReason 为失败的错误码
	Fallback       bool
	FallbackReason string

	// SnapshotVersion 是服务本次请求的快照版本
	SnapshotVersion uint64
}

// Result 是批量推荐中单个请求的结果，Response 与 Err 二者有一。
type Result struct {
	Response *Response
	Err      error
}
