package recall

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// CFRecall 是基于矩阵分解（截断 SVD）的协同过滤召回源。
//
// 核心思想：把 用户 x 物品 评分矩阵做低秩近似，重建后的矩阵即预测评分，
// 用户行上分数最高、且未评分过的物品就是推荐结果。
//
// 工程特征：
//   - 实时性：好（离线分解，在线查行）
//   - 计算复杂度：分解昂贵（交互变化后整体重建），查询为一行排序
//   - 冷启动：差，不在分解矩阵中的用户返回 UNKNOWN_USER，由调用方回退到热门
//
// Model 为空时从 context 中的快照（WithModels）解析。
type CFRecall struct {
	Model *CFModel

	// CandidateK 返回的候选数量，默认 1000
	CandidateK int
}

func (r *CFRecall) Name() string        { return "recall.cf" }
func (r *CFRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *CFRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *CFRecall) model(ctx context.Context) (*CFModel, error) {
	if r.Model != nil {
		return r.Model, nil
	}
	if m, ok := ModelsFrom(ctx); ok && m.CF() != nil {
		return m.CF(), nil
	}
	return nil, unavailable(core.ModuleCF, "factorized model")
}

// Recall 实现 Source：按 rctx.UserID 查预测行，排除 rctx.Ignored()。
func (r *CFRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	model, err := r.model(ctx)
	if err != nil {
		return nil, err
	}
	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}
	items, err := model.Recommend(userID, rctx.Ignored(), candidateK(r.CandidateK))
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("source", r.Name()).
		Str("user_id", userID).
		Int("candidates", len(items)).
		Msg("recall done")
	return items, nil
}
