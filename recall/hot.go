package recall

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// Popularity 是热门召回源：按物品在所有用户上的交互强度之和排序，
// 平分时 ID 升序。冷启动用户的兜底推荐。
//
// 聚合结果在构建时计算一次，之后只读。
// 可以发布到 KeyValueStore 的有序集合（Publish），也可以从有序集合加载（LoadPopularity）。
type Popularity struct {
	ranked []candidate // 已按分数降序、ID 升序排好
	scores map[string]float64

	// CandidateK 作为召回源时返回的候选数量，默认 1000
	CandidateK int

	// Skipped 是构建时因物品不在目录中而跳过的交互数
	Skipped int
}

// NewPopularity 聚合交互强度。同一 (用户, 物品) 多次出现时以最后一条为准；
// catalog 非空时跳过目录外的物品并计入 Skipped。
func NewPopularity(interactions []core.Interaction, catalog core.ItemCatalog) *Popularity {
	latest := make(map[[2]string]float64, len(interactions))
	skipped := 0
	for _, in := range interactions {
		if catalog != nil && !catalog.Has(in.ItemID) {
			skipped++
			continue
		}
		latest[[2]string{in.UserID, in.ItemID}] = in.Rating
	}
	scores := make(map[string]float64)
	for key, rating := range latest {
		scores[key[1]] += rating
	}
	p := newPopularity(scores)
	p.Skipped = skipped
	return p
}

func newPopularity(scores map[string]float64) *Popularity {
	ranked := make([]candidate, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, candidate{id: id, score: s})
	}
	return &Popularity{
		ranked: rankCandidates(ranked, nil, math.MaxInt),
		scores: scores,
	}
}

func (p *Popularity) Name() string        { return "recall.popularity" }
func (p *Popularity) Kind() pipeline.Kind { return pipeline.KindRecall }

// Len 返回有交互的物品数。
func (p *Popularity) Len() int { return len(p.ranked) }

// Score 返回物品的交互强度之和。
func (p *Popularity) Score(id string) (float64, bool) {
	s, ok := p.scores[id]
	return s, ok
}

// Recommend 返回前 topN 个热门物品（不含 exclude）。
func (p *Popularity) Recommend(exclude core.IDSet, topN int) ([]*core.Item, error) {
	if err := checkTopN(core.ModulePopularity, topN); err != nil {
		return nil, err
	}
	out := make([]candidate, 0, min(topN, len(p.ranked)))
	for _, c := range p.ranked {
		if len(out) == topN {
			break
		}
		if !exclude.Has(c.id) {
			out = append(out, c)
		}
	}
	return toItems(out, "popularity"), nil
}

func (p *Popularity) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return p.Recall(ctx, rctx)
}

// Recall 实现 Source：排除 rctx.Ignored()，返回 CandidateK 个候选。
func (p *Popularity) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	return p.Recommend(rctx.Ignored(), candidateK(p.CandidateK))
}

// Publish 用聚合结果替换有序集合 key（member = 物品 ID，score = 强度之和），
// 上一个快照留下的成员不会残留。后端支持 ZSetBatcher 时替换是原子的，
// 否则先删除 key 再逐个写入。
func (p *Popularity) Publish(ctx context.Context, kv core.KeyValueStore, key string) error {
	if b, ok := kv.(core.ZSetBatcher); ok {
		if err := b.ZReplace(ctx, key, p.scores); err != nil {
			return fmt.Errorf("publish popularity %s: %w", key, err)
		}
		return nil
	}
	if err := kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("publish popularity %s: %w", key, err)
	}
	for _, c := range p.ranked {
		if err := kv.ZAdd(ctx, key, c.score, c.id); err != nil {
			return fmt.Errorf("publish popularity %s: %w", key, err)
		}
	}
	return nil
}

// LoadPopularity 从有序集合重建热门榜单，只保留前 limit 个（limit <= 0 表示全部）。
// 后端对同分成员的顺序不做保证（Redis 为字典序逆序），因此读取整个集合、
// 按统一规则排序后再截断，截断处的平分不受后端顺序影响。
func LoadPopularity(ctx context.Context, kv core.KeyValueStore, key string, limit int) (*Popularity, error) {
	members, err := kv.ZRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("load popularity %s: %w", key, err)
	}
	if len(members) == 0 {
		return nil, core.NewNotFoundError(core.ModulePopularity, "ranking", key)
	}
	scores := make(map[string]float64, len(members))
	for _, m := range members {
		s, err := kv.ZScore(ctx, key, m)
		if err != nil {
			return nil, fmt.Errorf("load popularity %s member %s: %w", key, m, err)
		}
		scores[m] = s
	}
	p := newPopularity(scores)
	if limit > 0 && limit < len(p.ranked) {
		p.ranked = p.ranked[:limit]
		kept := make(map[string]float64, limit)
		for _, c := range p.ranked {
			kept[c.id] = c.score
		}
		p.scores = kept
	}
	zerolog.Ctx(ctx).Debug().Str("key", key).Int("items", len(p.scores)).Msg("popularity loaded")
	return p, nil
}

// PopularityRecall 从 context 中的快照解析热门榜单，用于配置驱动的 Pipeline。
type PopularityRecall struct {
	CandidateK int
}

func (r *PopularityRecall) Name() string        { return "recall.popularity" }
func (r *PopularityRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *PopularityRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *PopularityRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	m, ok := ModelsFrom(ctx)
	if !ok || m.Popularity() == nil {
		return nil, unavailable(core.ModulePopularity, "popularity ranking")
	}
	return m.Popularity().Recommend(rctx.Ignored(), candidateK(r.CandidateK))
}
