// Package service 提供书籍推荐服务：在不可变快照上按策略推荐，失败时回退到热门推荐。
//
// 并发模型：
//   - 请求只读取当前快照（atomic.Pointer），无锁
//   - Refresh / AddRatings 在热路径之外构建新快照，再原子替换；写者之间串行
//   - 正在执行的请求继续使用旧快照，直到下一次请求
//
// 使用示例：
//
//	rec, err := service.NewRecommender(ctx, cfg, features, interactions,
//	    service.WithLogger(logger),
//	    service.WithRegisterer(prometheus.DefaultRegisterer),
//	)
//	resp, err := rec.Recommend(ctx, service.Request{
//	    UserID:  "42",
//	    Ratings: map[string]float64{"1": 5, "7": 4},
//	    TopN:    10,
//	})
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/config"
	_ "github.com/rushteam/bookrec/config/builders"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/rerank"
)

// genreExpr 按请求选择的类型圈定结果（rctx.params.genres）。
const genreExpr = `has(item.meta.genre) && item.meta.genre in rctx.params.genres`

// Recommender 是推荐服务，可被多个 goroutine 并发使用。
type Recommender struct {
	cfg      *config.EngineConfig
	logger   zerolog.Logger
	registry prometheus.Registerer
	metrics  *metrics

	kv         core.KeyValueStore
	exclusions *filter.StoreAdapter
	pipeline   *pipeline.Pipeline
	genre      *filter.ExprFilter

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
}

// Option 配置 Recommender。
type Option func(*Recommender)

// WithLogger 设置日志，默认不输出。
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Recommender) { r.logger = logger }
}

// WithRegisterer 设置指标注册表，默认使用独立的 prometheus.NewRegistry()。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Recommender) { r.registry = reg }
}

// WithStore 设置存储：每个快照的热门榜单发布到有序集合，用户排除列表从中读取。
func WithStore(kv core.KeyValueStore) Option {
	return func(r *Recommender) { r.kv = kv }
}

// WithPipeline 使用给定的 Node 链代替内置的策略分发。
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(r *Recommender) { r.pipeline = p }
}

// NewRecommender 校验配置并构建第一个快照。features 是不可变的特征库（目录），
// interactions 是当前全部交互记录。cfg 为 nil 时使用默认配置。
func NewRecommender(
	ctx context.Context,
	cfg *config.EngineConfig,
	features *feature.Store,
	interactions []core.Interaction,
	opts ...Option,
) (*Recommender, error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if features == nil || features.Len() == 0 {
		return nil, core.NewInvalidInputError(core.ModuleService, "feature store is empty")
	}

	r := &Recommender{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "recommend").Logger()
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	r.metrics = newMetrics(r.registry)

	genre, err := filter.NewExprFilter(genreExpr)
	if err != nil {
		return nil, err
	}
	r.genre = genre

	if r.pipeline == nil && cfg.Pipeline != "" {
		if r.pipeline, err = loadPipeline(cfg.Pipeline); err != nil {
			return nil, err
		}
	}
	if r.kv != nil {
		r.exclusions = filter.NewStoreAdapter(r.kv)
	}

	ctx = r.logger.WithContext(ctx)
	if _, err := r.publish(ctx, features, interactions, 1); err != nil {
		return nil, err
	}
	r.logger.Info().
		Int("items", features.Len()).
		Int("dim", features.Dim()).
		Bool("pipeline", r.pipeline != nil).
		Msg("recommender ready")
	return r, nil
}

func loadPipeline(path string) (*pipeline.Pipeline, error) {
	pc, err := pipeline.LoadFromYAML(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", path, err)
	}
	if err := config.ValidatePipelineConfig(pc); err != nil {
		return nil, err
	}
	return pc.BuildPipeline(config.DefaultFactory())
}

// Snapshot 返回当前快照。
func (r *Recommender) Snapshot() *Snapshot {
	return r.current.Load()
}

// publish 构建并发布新快照，调用方需持有 refreshMu（构造时除外）。
func (r *Recommender) publish(
	ctx context.Context,
	features *feature.Store,
	interactions []core.Interaction,
	version uint64,
) (*Snapshot, error) {
	start := time.Now()
	snap, err := buildSnapshot(ctx, r.cfg, features, interactions, version)
	if err != nil {
		return nil, err
	}
	if r.kv != nil {
		if err := snap.pop.Publish(ctx, r.kv, r.cfg.Store.PopularityKey); err != nil {
			return nil, err
		}
	}
	r.current.Store(snap)

	d := time.Since(start)
	r.metrics.observeSnapshot(snap, d)
	r.logger.Info().
		Uint64("version", snap.Version).
		Int("users", snap.Users).
		Int("items", snap.Items).
		Int("rank", snap.Rank()).
		Int("skipped", snap.Skipped).
		Dur("duration", d).
		Msg("snapshot published")
	return snap, nil
}

// Refresh 用新的交互全集重建评分矩阵、分解与热门榜单，然后原子替换快照。
// 构建失败时保留旧快照。
func (r *Recommender) Refresh(ctx context.Context, interactions []core.Interaction) (*Snapshot, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	old := r.current.Load()
	return r.publish(r.logger.WithContext(ctx), old.features, interactions, old.Version+1)
}

// AddRatings 追加一个用户的一批评分（同一物品以新评分为准）并重建快照。
// 一批评分只触发一次分解；评分中的物品必须在目录中。
func (r *Recommender) AddRatings(ctx context.Context, userID string, ratings map[string]float64) (*Snapshot, error) {
	if userID == "" {
		return nil, core.NewInvalidInputError(core.ModuleService, "user id is required")
	}
	if len(ratings) == 0 {
		return nil, core.NewInvalidInputError(core.ModuleService, "no ratings to add")
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	old := r.current.Load()
	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		if !old.features.Has(id) {
			return nil, core.NewNotFoundError(core.ModuleService, "item", id)
		}
		ids = append(ids, id)
	}
	interactions := old.Interactions()
	for _, id := range core.NewIDSet(ids...).Sorted() {
		interactions = append(interactions, core.Interaction{UserID: userID, ItemID: id, Rating: ratings[id]})
	}
	return r.publish(r.logger.WithContext(ctx), old.features, interactions, old.Version+1)
}

// SetExclusions 覆盖用户在存储中的排除列表（如已读书单），需要 WithStore。
func (r *Recommender) SetExclusions(ctx context.Context, userID string, ids []string) error {
	if r.exclusions == nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "service: no store configured")
	}
	return r.exclusions.SetUserList(ctx, r.cfg.Store.ExcludePrefix, userID, ids)
}

// Recommend 为单个请求推荐。
//
// 请求策略因 EMPTY_PROFILE / UNKNOWN_USER / NOT_FOUND 失败且开启 Fallback 时，
// 由热门推荐兜底，Response.Fallback 与 FallbackReason 记录原因；其他错误原样返回。
func (r *Recommender) Recommend(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	snap := r.current.Load()

	strategy := req.Strategy
	if strategy == "" {
		strategy = Strategy(r.cfg.Strategy)
	}
	if !strategy.valid() {
		return nil, core.NewInvalidInputError(core.ModuleService, fmt.Sprintf("unknown strategy %q", strategy))
	}
	topN := req.TopN
	if topN == 0 {
		topN = r.cfg.TopN
	}
	if topN < 0 {
		return nil, core.NewInvalidInputError(core.ModuleService, fmt.Sprintf("top_n must be positive, got %d", topN))
	}

	logger := r.logger.With().
		Str("user_id", req.UserID).
		Uint64("snapshot", snap.Version).
		Logger()
	ctx = logger.WithContext(ctx)

	rctx, err := r.requestContext(ctx, snap, req)
	if err != nil {
		return nil, err
	}

	// 按类型过滤时先多取候选，过滤后再截断
	k := topN
	if len(req.Genres) > 0 {
		k = max(topN, r.cfg.Hybrid.CandidateK)
	}

	resp := &Response{UserID: req.UserID, SnapshotVersion: snap.Version}
	var items []*core.Item
	if r.pipeline != nil {
		resp.Requested = StrategyPipeline
		items, err = r.pipeline.Run(r.modelsContext(ctx, snap), rctx, nil)
	} else {
		resp.Requested = r.resolve(snap, strategy, rctx)
		items, err = r.dispatch(ctx, snap, resp.Requested, rctx, k)
	}
	resp.Strategy = resp.Requested

	if err != nil {
		if !r.cfg.Fallback || !core.IsRecoverable(err) || resp.Requested == StrategyPopularity {
			r.metrics.observeRequest(resp.Requested, "error", start)
			return nil, err
		}
		reason := reasonOf(err)
		logger.Warn().
			Err(err).
			Str("strategy", string(resp.Requested)).
			Str("reason", reason).
			Msg("falling back to popularity")
		r.metrics.fallbacks.WithLabelValues(reason).Inc()
		resp.Strategy = StrategyPopularity
		resp.Fallback = true
		resp.FallbackReason = reason
		if items, err = snap.pop.Recommend(rctx.Ignored(), k); err != nil {
			r.metrics.observeRequest(resp.Requested, "error", start)
			return nil, err
		}
	}

	resp.Items, err = r.finish(ctx, snap, rctx, items, topN, len(req.Genres) > 0)
	if err != nil {
		r.metrics.observeRequest(resp.Requested, "error", start)
		return nil, err
	}
	outcome := "ok"
	if resp.Fallback {
		outcome = "fallback"
	}
	r.metrics.observeRequest(resp.Requested, outcome, start)
	logger.Debug().
		Str("strategy", string(resp.Strategy)).
		Int("items", len(resp.Items)).
		Dur("duration", time.Since(start)).
		Msg("recommended")
	return resp, nil
}

// RecommendBatch 在有界的 worker 池上并发处理相互独立的请求，返回与请求一一对应的结果。
// 单个请求失败不影响其他请求。
func (r *Recommender) RecommendBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := r.Recommend(ctx, req)
			results[i] = Result{Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// requestContext 组装请求上下文：请求评分为空时使用快照中的历史评分，
// 配置了存储时合并用户排除列表。
func (r *Recommender) requestContext(ctx context.Context, snap *Snapshot, req Request) (*core.RecommendContext, error) {
	ratings := req.Ratings
	if len(ratings) == 0 {
		ratings = snap.History(req.UserID)
	}
	rctx := &core.RecommendContext{
		UserID:  req.UserID,
		Ratings: ratings,
		Exclude: core.NewIDSet(req.Exclude...),
		Params:  make(map[string]any, len(req.Params)+1),
	}
	for k, v := range req.Params {
		rctx.Params[k] = v
	}
	if len(req.Genres) > 0 {
		genres := make([]any, len(req.Genres))
		for i, g := range req.Genres {
			genres[i] = g
		}
		rctx.Params["genres"] = genres
	}
	if r.exclusions != nil && req.UserID != "" {
		ids, err := r.exclusions.GetUserList(ctx, r.cfg.Store.ExcludePrefix, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("read exclusions: %w", err)
		}
		rctx.Exclude.Add(ids...)
	}
	return rctx, nil
}

func (r *Recommender) modelsContext(ctx context.Context, snap *Snapshot) context.Context {
	ctx = recall.WithModels(ctx, snap)
	if r.exclusions != nil {
		ctx = filter.WithStore(ctx, r.exclusions)
	}
	return ctx
}

// resolve 把 auto 解析为具体策略。
func (r *Recommender) resolve(snap *Snapshot, s Strategy, rctx *core.RecommendContext) Strategy {
	if s != StrategyAuto {
		return s
	}
	canContent := len(rctx.Ratings) > 0
	_, cfErr := snap.cfFor(rctx.UserID)
	canCF := cfErr == nil
	switch {
	case canContent && canCF:
		return StrategyHybrid
	case canContent:
		return StrategyContent
	case canCF:
		return StrategyCollaborative
	default:
		return StrategyPopularity
	}
}

func (r *Recommender) dispatch(
	ctx context.Context,
	snap *Snapshot,
	s Strategy,
	rctx *core.RecommendContext,
	k int,
) ([]*core.Item, error) {
	ignored := rctx.Ignored()
	switch s {
	case StrategyContent:
		profile, err := snap.profile(rctx.UserID, rctx.Ratings, r.metrics)
		if err != nil {
			return nil, err
		}
		return snap.content.Recommend(profile, ignored, k)
	case StrategyCollaborative:
		cf, err := snap.cfFor(rctx.UserID)
		if err != nil {
			return nil, err
		}
		return cf.Recommend(rctx.UserID, ignored, k)
	case StrategyHybrid:
		if _, err := snap.cfFor(rctx.UserID); err != nil {
			return nil, err
		}
		profile, err := snap.profile(rctx.UserID, rctx.Ratings, r.metrics)
		if err != nil {
			return nil, err
		}
		return snap.hybrid.Recommend(ctx, rctx.UserID, profile, ignored, k)
	case StrategyPopularity:
		return snap.pop.Recommend(ignored, k)
	default:
		return nil, core.NewInvalidInputError(core.ModuleService, fmt.Sprintf("unknown strategy %q", s))
	}
}

// finish 注入目录元信息、剔除目录外物品、按类型过滤，最后排序截断。
func (r *Recommender) finish(
	ctx context.Context,
	snap *Snapshot,
	rctx *core.RecommendContext,
	items []*core.Item,
	topN int,
	byGenre bool,
) ([]*core.Item, error) {
	filters := []filter.Filter{&filter.CatalogFilter{Catalog: snap.features}}
	if byGenre {
		filters = append(filters, r.genre)
	}
	p := &pipeline.Pipeline{
		Name: "finish",
		Nodes: []pipeline.Node{
			&feature.EnrichNode{Catalog: snap.features},
			&filter.FilterNode{Filters: filters},
			&rerank.TopNNode{N: topN},
		},
	}
	return p.Run(ctx, rctx, items)
}

func reasonOf(err error) string {
	if de := core.GetDomainError(err); de != nil {
		return de.Code
	}
	return "UNKNOWN"
}
