package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/pkg/sparse"
	"github.com/rushteam/bookrec/recall"
)

// Snapshot 是一份不可变的模型快照：特征库、分解结果、热门榜单与交互记录。
// 创建后只读，可被任意多个请求并发使用；交互变化时整体重建并替换。
//
// Snapshot 实现 recall.Models，配置驱动的 Pipeline 通过它解析模型。
type Snapshot struct {
	Version uint64
	BuiltAt time.Time

	// Users / Items 是评分矩阵的行数与列数，Skipped 是因物品不在目录中被跳过的交互数
	Users   int
	Items   int
	Skipped int

	features     *feature.Store
	interactions []core.Interaction
	history      map[string]map[string]float64 // user -> item -> rating（last-wins，仅目录内物品）
	cf           *recall.CFModel
	pop          *recall.Popularity
	content      *recall.ContentRecall
	hybrid       *recall.Hybrid
	profiles     *lru.Cache[uint64, sparse.Vector]
}

func (s *Snapshot) Features() *feature.Store       { return s.features }
func (s *Snapshot) CF() *recall.CFModel            { return s.cf }
func (s *Snapshot) Popularity() *recall.Popularity { return s.pop }

// Interactions 返回构建快照时使用的交互记录（副本）。
func (s *Snapshot) Interactions() []core.Interaction { return slices.Clone(s.interactions) }

// History 返回用户在快照中的历史评分（副本），没有历史时返回 nil。
func (s *Snapshot) History(userID string) map[string]float64 {
	return maps.Clone(s.history[userID])
}

// Rank 返回分解的秩，没有交互（未分解）时为 0。
func (s *Snapshot) Rank() int {
	if s.cf == nil {
		return 0
	}
	return s.cf.Rank()
}

// buildSnapshot 在热路径之外构建新快照：评分矩阵、截断 SVD、热门聚合。
// 没有任何非零评分时跳过分解，所有用户都视为冷启动。
func buildSnapshot(
	ctx context.Context,
	cfg *config.EngineConfig,
	features *feature.Store,
	interactions []core.Interaction,
	version uint64,
) (*Snapshot, error) {
	logger := zerolog.Ctx(ctx)

	m := recall.NewRatingMatrix(interactions, features)
	if m.Skipped > 0 {
		logger.Warn().
			Int("count", m.Skipped).
			Str("reason", "item not in catalog").
			Msg("interactions skipped")
	}

	var cf *recall.CFModel
	if m.NNZ() > 0 {
		var err error
		cf, err = recall.Factorize(ctx, m, cfg.Rank, recall.FactorizeOptions{MaxCells: cfg.MaxMatrixCells})
		if err != nil {
			return nil, fmt.Errorf("factorize: %w", err)
		}
	} else {
		logger.Warn().Msg("no ratings, collaborative filtering disabled for this snapshot")
	}

	content := &recall.ContentRecall{Features: features, CandidateK: cfg.Hybrid.CandidateK}
	hybrid, err := recall.NewHybrid(content, cf, cfg.Hybrid)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Version:      version,
		BuiltAt:      time.Now(),
		Users:        m.Rows(),
		Items:        m.Cols(),
		Skipped:      m.Skipped,
		features:     features,
		interactions: slices.Clone(interactions),
		history:      historyOf(interactions, features),
		cf:           cf,
		pop:          recall.NewPopularity(interactions, features),
		content:      content,
		hybrid:       hybrid,
	}
	if cfg.ProfileCacheSize > 0 {
		s.profiles, err = lru.New[uint64, sparse.Vector](cfg.ProfileCacheSize)
		if err != nil {
			return nil, fmt.Errorf("profile cache: %w", err)
		}
	}
	return s, nil
}

func historyOf(interactions []core.Interaction, catalog core.ItemCatalog) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, in := range interactions {
		if !catalog.Has(in.ItemID) {
			continue
		}
		h, ok := out[in.UserID]
		if !ok {
			h = make(map[string]float64)
			out[in.UserID] = h
		}
		h[in.ItemID] = in.Rating
	}
	return out
}

// profileKey 是 用户 ID + 评分集合 的哈希，评分按物品 ID 排序后写入。
func profileKey(userID string, ratings map[string]float64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(userID)
	var buf [8]byte
	ids := slices.Collect(maps.Keys(ratings))
	slices.SortFunc(ids, core.CompareIDs)
	for _, id := range ids {
		_, _ = d.WriteString("\x00" + id)
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(ratings[id]))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// profile 构建用户画像，命中 LRU 时直接返回。画像只依赖评分与特征库，因此缓存随快照一起失效。
func (s *Snapshot) profile(userID string, ratings map[string]float64, m *metrics) (sparse.Vector, error) {
	if s.profiles == nil {
		return s.content.BuildUserProfile(ratings)
	}
	key := profileKey(userID, ratings)
	if v, ok := s.profiles.Get(key); ok {
		m.profileCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	m.profileCache.WithLabelValues("miss").Inc()
	v, err := s.content.BuildUserProfile(ratings)
	if err != nil {
		return sparse.Vector{}, err
	}
	s.profiles.Add(key, v)
	return v, nil
}

// cfFor 返回能为该用户服务的协同过滤模型；未分解时所有用户都是冷启动。
func (s *Snapshot) cfFor(userID string) (*recall.CFModel, error) {
	if s.cf == nil || !s.cf.Knows(userID) {
		return nil, core.NewUnknownUserError(core.ModuleCF, userID)
	}
	return s.cf, nil
}
