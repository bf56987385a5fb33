package recall

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/sparse"
	"github.com/rushteam/bookrec/pkg/utils"
)

// HybridConfig 是混合推荐的权重配置。
type HybridConfig struct {
	WeightCB float64 `yaml:"weight_cb" json:"weight_cb" koanf:"weight_cb"`
	WeightCF float64 `yaml:"weight_cf" json:"weight_cf" koanf:"weight_cf"`

	// CandidateK 每个模型的候选数量，默认 1000
	CandidateK int `yaml:"candidate_k" json:"candidate_k" koanf:"candidate_k"`

	// Normalize 融合前把每个列表的分数 min-max 到 [0,1]（常数列表映射为 1）
	Normalize bool `yaml:"normalize" json:"normalize" koanf:"normalize"`
}

// Validate 拒绝负数或非有限权重。
func (c HybridConfig) Validate() error {
	for name, w := range map[string]float64{"weight_cb": c.WeightCB, "weight_cf": c.WeightCF} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return core.NewInvalidInputError(core.ModuleHybrid, fmt.Sprintf("%s must be a non-negative number, got %v", name, w))
		}
	}
	return nil
}

// Hybrid 是混合召回：分别调用内容召回与协同过滤（并发），按物品 ID 外连接两个候选列表，
// 组合分数 = w_cb * score_cb + w_cf * score_cf（只在一侧出现的物品另一侧记 0），
// 分数降序、ID 升序排序后截取 TopN。
//
// Content.Features 或 CF 为空时从 context 中的快照解析。
type Hybrid struct {
	Content *ContentRecall
	CF      *CFModel
	Config  HybridConfig
}

// NewHybrid 创建混合召回，权重为负时返回 INVALID_INPUT。
func NewHybrid(content *ContentRecall, cf *CFModel, cfg HybridConfig) (*Hybrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if content == nil {
		content = &ContentRecall{}
	}
	return &Hybrid{Content: content, CF: cf, Config: cfg}, nil
}

func (h *Hybrid) Name() string        { return "recall.hybrid" }
func (h *Hybrid) Kind() pipeline.Kind { return pipeline.KindRecall }

func (h *Hybrid) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return h.Recall(ctx, rctx)
}

func (h *Hybrid) resolve(ctx context.Context) (*ContentRecall, *CFModel, error) {
	content := h.Content
	if content == nil {
		content = &ContentRecall{}
	}
	content, err := content.resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	cf, err := (&CFRecall{Model: h.CF}).model(ctx)
	if err != nil {
		return nil, nil, err
	}
	return content, cf, nil
}

// minMax 返回把列表分数映射到 [0,1] 的函数；常数列表映射为 1。
func minMax(items []*core.Item) func(float64) float64 {
	if len(items) == 0 {
		return func(v float64) float64 { return v }
	}
	lo, hi := items[0].Score, items[0].Score
	for _, it := range items[1:] {
		lo = math.Min(lo, it.Score)
		hi = math.Max(hi, it.Score)
	}
	if hi == lo {
		return func(float64) float64 { return 1 }
	}
	return func(v float64) float64 { return (v - lo) / (hi - lo) }
}

// Combine 是纯粹的分数融合：外连接、加权求和、排序、截断。
// topN <= 0 表示不截断。两个权重都为 0 时结果按物品 ID 升序。
func (h *Hybrid) Combine(cbList, cfList []*core.Item, topN int) []*core.Item {
	type pair struct{ cb, cf float64 }
	scores := make(map[string]*pair, len(cbList)+len(cfList))
	order := make([]string, 0, len(cbList)+len(cfList))
	get := func(id string) *pair {
		p, ok := scores[id]
		if !ok {
			p = &pair{}
			scores[id] = p
			order = append(order, id)
		}
		return p
	}

	normCB, normCF := func(v float64) float64 { return v }, func(v float64) float64 { return v }
	if h.Config.Normalize {
		normCB, normCF = minMax(cbList), minMax(cfList)
	}
	for _, it := range cbList {
		if it != nil {
			get(it.ID).cb = normCB(it.Score)
		}
	}
	for _, it := range cfList {
		if it != nil {
			get(it.ID).cf = normCF(it.Score)
		}
	}

	cands := make([]candidate, len(order))
	for i, id := range order {
		p := scores[id]
		cands[i] = candidate{id: id, score: h.Config.WeightCB*p.cb + h.Config.WeightCF*p.cf}
	}
	if topN <= 0 {
		topN = len(cands)
	}
	ranked := rankCandidates(cands, nil, topN)

	out := make([]*core.Item, len(ranked))
	for i, c := range ranked {
		p := scores[c.id]
		it := core.NewScoredItem(c.id, c.score)
		it.PutLabel("recall_source", utils.Label{Value: "hybrid", Source: "recall"})
		it.PutLabel("score_cb", utils.ScoreLabel(p.cb, "hybrid"))
		it.PutLabel("score_cf", utils.ScoreLabel(p.cf, "hybrid"))
		out[i] = it
	}
	return out
}

// Recommend 并发获取两个模型的前 CandidateK 个候选并融合。
// 任一模型出错（如 UNKNOWN_USER、EMPTY_PROFILE）都原样返回给调用方，不吞掉。
func (h *Hybrid) Recommend(
	ctx context.Context,
	userID string,
	profile sparse.Vector,
	exclude core.IDSet,
	topN int,
) ([]*core.Item, error) {
	if err := checkTopN(core.ModuleHybrid, topN); err != nil {
		return nil, err
	}
	content, cf, err := h.resolve(ctx)
	if err != nil {
		return nil, err
	}
	k := candidateK(h.Config.CandidateK)

	var cbList, cfList []*core.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cbList, err = content.Recommend(profile, exclude, k)
		if err != nil {
			return fmt.Errorf("content candidates: %w", err)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		var err error
		cfList, err = cf.Recommend(userID, exclude, k)
		if err != nil {
			return fmt.Errorf("cf candidates: %w", err)
		}
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := h.Combine(cbList, cfList, topN)
	zerolog.Ctx(ctx).Debug().
		Str("user_id", userID).
		Int("cb_candidates", len(cbList)).
		Int("cf_candidates", len(cfList)).
		Int("results", len(out)).
		Msg("hybrid combined")
	return out, nil
}

// Recall 实现 Source：画像来自 rctx.Ratings，用户来自 rctx.UserID，返回 CandidateK 个融合结果。
func (h *Hybrid) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if err := h.Config.Validate(); err != nil {
		return nil, err
	}
	content, _, err := h.resolve(ctx)
	if err != nil {
		return nil, err
	}
	var (
		ratings map[string]float64
		userID  string
	)
	if rctx != nil {
		ratings, userID = rctx.Ratings, rctx.UserID
	}
	profile, err := content.BuildUserProfile(ratings)
	if err != nil {
		return nil, err
	}
	return h.Recommend(ctx, userID, profile, rctx.Ignored(), candidateK(h.Config.CandidateK))
}
