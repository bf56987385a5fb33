package recall

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/sparse"
)

// ContentRecall 是基于内容的召回源（Content-Based Recommendation）。
//
// 核心思想："用户喜欢具有某些特征的物品，推荐具有相似特征的其他物品"
//
//  1. 用户画像 = Σ(rating_i * vector_i) / Σ(rating_i)，再做 L2 归一化
//  2. 与目录中每个物品的 TF-IDF 向量计算余弦相似度
//  3. 分数降序、ID 升序排序，剔除 exclude，截取 TopN
//
// Features 为空时从 context 中的快照（WithModels）解析特征库。
type ContentRecall struct {
	Features *feature.Store

	// CandidateK 作为召回源（Recall）时返回的候选数量，默认 1000
	CandidateK int
}

// NewContentRecall 基于给定特征库创建内容召回。
func NewContentRecall(fs *feature.Store) *ContentRecall {
	return &ContentRecall{Features: fs}
}

func (r *ContentRecall) Name() string        { return "recall.content" }
func (r *ContentRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *ContentRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ContentRecall) resolve(ctx context.Context) (*ContentRecall, error) {
	if r.Features != nil {
		return r, nil
	}
	if m, ok := ModelsFrom(ctx); ok && m.Features() != nil {
		return &ContentRecall{Features: m.Features(), CandidateK: r.CandidateK}, nil
	}
	return nil, unavailable(core.ModuleContent, "feature store")
}

// BuildUserProfile 根据评分构建 L2 归一化的用户画像。
//
// 评分为空、评分之和为 0、或被评分物品全部没有特征时返回 EMPTY_PROFILE；
// 任何被评分物品不在特征库中时返回 NOT_FOUND。
func (r *ContentRecall) BuildUserProfile(ratings map[string]float64) (sparse.Vector, error) {
	if r.Features == nil {
		return sparse.Vector{}, unavailable(core.ModuleContent, "feature store")
	}
	if len(ratings) == 0 {
		return sparse.Vector{}, core.NewEmptyProfileError(core.ModuleContent, "no ratings")
	}

	// 固定累加顺序，保证浮点结果可复现
	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return core.CompareIDs(ids[i], ids[j]) < 0 })

	weights := make([]float64, len(ids))
	var total float64
	for i, id := range ids {
		w := ratings[id]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return sparse.Vector{}, core.NewInvalidInputError(core.ModuleContent,
				fmt.Sprintf("rating for item %q is %v", id, w))
		}
		weights[i] = w
		total += w
	}
	if total == 0 {
		return sparse.Vector{}, core.NewEmptyProfileError(core.ModuleContent, "ratings sum to zero")
	}

	vectors, err := r.Features.GetVectors(ids)
	if err != nil {
		return sparse.Vector{}, err
	}
	sum, err := sparse.WeightedSum(vectors, weights)
	if err != nil {
		return sparse.Vector{}, core.NewInvalidInputError(core.ModuleContent, err.Error())
	}
	profile, err := sum.Scale(1 / total).Normalize()
	if err != nil {
		return sparse.Vector{}, core.NewEmptyProfileError(core.ModuleContent, "rated items carry no features")
	}
	return profile, nil
}

// Recommend 对目录中每个物品计算与画像的余弦相似度，返回前 topN 个（不含 exclude）。
// 纯函数：只依赖输入与特征库。
func (r *ContentRecall) Recommend(profile sparse.Vector, exclude core.IDSet, topN int) ([]*core.Item, error) {
	if r.Features == nil {
		return nil, unavailable(core.ModuleContent, "feature store")
	}
	if err := checkTopN(core.ModuleContent, topN); err != nil {
		return nil, err
	}
	if profile.Dim != r.Features.Dim() {
		return nil, core.NewInvalidInputError(core.ModuleContent,
			fmt.Sprintf("profile dimension %d, feature store dimension %d", profile.Dim, r.Features.Dim()))
	}

	cands := make([]candidate, r.Features.Len())
	for i := range cands {
		id, vec := r.Features.Row(i)
		cands[i] = candidate{id: id, score: sparse.Cosine(profile, vec)}
	}
	return toItems(rankCandidates(cands, exclude, topN), "content"), nil
}

// Recall 实现 Source：画像来自 rctx.Ratings，排除 rctx.Ignored()，返回 CandidateK 个候选。
func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	cr, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	var ratings map[string]float64
	if rctx != nil {
		ratings = rctx.Ratings
	}
	profile, err := cr.BuildUserProfile(ratings)
	if err != nil {
		return nil, err
	}
	items, err := cr.Recommend(profile, rctx.Ignored(), candidateK(r.CandidateK))
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("source", r.Name()).
		Int("ratings", len(ratings)).
		Int("candidates", len(items)).
		Msg("recall done")
	return items, nil
}
