package core

import "github.com/rushteam/bookrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/场景信息，贯穿整个 Pipeline 透传。
// 它只属于单个请求，请求结束即丢弃。
type RecommendContext struct {
	UserID string
	Scene  string

	// Ratings 是用户本次提供的评分（item_id -> rating），用于构建内容画像
	Ratings map[string]float64

	// Exclude 是调用方指定的 items_to_ignore；已评分物品会被自动追加
	Exclude IDSet

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数（如 genres、top_n 等）
	Params map[string]any
}

// Ignored 返回本次请求需要排除的全部物品：Exclude ∪ keys(Ratings)。
func (rctx *RecommendContext) Ignored() IDSet {
	if rctx == nil {
		return IDSet{}
	}
	out := rctx.Exclude.Union()
	for id := range rctx.Ratings {
		out[id] = struct{}{}
	}
	return out
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// Param 读取请求参数，不存在时返回 nil。
func (rctx *RecommendContext) Param(key string) any {
	if rctx == nil || rctx.Params == nil {
		return nil
	}
	return rctx.Params[key]
}
