// Package builders 在 init 中向 config 注册全部内置 Node 的构建逻辑。
// 使用配置驱动时在入口处 import _ "github.com/rushteam/bookrec/config/builders"。
//
// 召回 Node 不在配置中持有模型：模型在每次请求时从 context 中的快照解析（recall.WithModels），
// 因此同一个 Pipeline 在快照替换后自动使用新模型。
package builders

import (
	"context"
	"fmt"

	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/conv"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/rerank"
)

func init() {
	config.Register("recall.content", BuildContentNode)
	config.Register("recall.cf", BuildCFNode)
	config.Register("recall.popularity", BuildPopularityNode)
	config.Register("recall.hybrid", BuildHybridNode)
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter", BuildFilterNode)
	config.Register("feature.enrich", BuildFeatureEnrichNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
}

func BuildContentNode(cfg map[string]any) (pipeline.Node, error) {
	return &recall.ContentRecall{CandidateK: conv.ConfigGetInt(cfg, "candidate_k", 0)}, nil
}

func BuildCFNode(cfg map[string]any) (pipeline.Node, error) {
	return &recall.CFRecall{CandidateK: conv.ConfigGetInt(cfg, "candidate_k", 0)}, nil
}

func BuildPopularityNode(cfg map[string]any) (pipeline.Node, error) {
	return &recall.PopularityRecall{CandidateK: conv.ConfigGetInt(cfg, "candidate_k", 0)}, nil
}

// BuildHybridNode 权重默认 1.0/1.0；负权重在构建时即返回 INVALID_INPUT。
func BuildHybridNode(cfg map[string]any) (pipeline.Node, error) {
	h, err := recall.NewHybrid(nil, nil, recall.HybridConfig{
		WeightCB:   conv.ConfigGetFloat64(cfg, "weight_cb", 1.0),
		WeightCF:   conv.ConfigGetFloat64(cfg, "weight_cf", 1.0),
		CandidateK: conv.ConfigGetInt(cfg, "candidate_k", 0),
		Normalize:  conv.ConfigGet(cfg, "normalize", false),
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func buildSource(cfg map[string]any) (recall.Source, error) {
	var (
		node pipeline.Node
		err  error
	)
	switch t := conv.ConfigGet(cfg, "type", ""); t {
	case "content":
		node, err = BuildContentNode(cfg)
	case "cf":
		node, err = BuildCFNode(cfg)
	case "popularity":
		node, err = BuildPopularityNode(cfg)
	case "hybrid":
		node, err = BuildHybridNode(cfg)
	default:
		return nil, fmt.Errorf("unknown source type: %q (supported: content, cf, popularity, hybrid)", t)
	}
	if err != nil {
		return nil, err
	}
	return node.(recall.Source), nil
}

// BuildFanoutNode 配置示例：
//
//	type: recall.fanout
//	config:
//	  sources: [{type: cf}, {type: content}, {type: popularity}]
//	  merge_strategy: first
//	  timeout: 2s
//	  tolerant: true
func BuildFanoutNode(cfg map[string]any) (pipeline.Node, error) {
	sourcesConfig := conv.ConfigGetMaps(cfg, "sources")
	if len(sourcesConfig) == 0 {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for i, sc := range sourcesConfig {
		src, err := buildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source #%d: %w", i, err)
		}
		sources = append(sources, src)
	}
	timeout, err := conv.ConfigGetDuration(cfg, "timeout", 0)
	if err != nil {
		return nil, err
	}
	strategy := conv.ConfigGet(cfg, "merge_strategy", "first")
	switch strategy {
	case "first", "priority", "union":
	default:
		return nil, fmt.Errorf("unknown merge_strategy: %q", strategy)
	}
	return &recall.Fanout{
		Sources:       sources,
		Timeout:       timeout,
		MaxConcurrent: conv.ConfigGetInt(cfg, "max_concurrent", 0),
		MergeStrategy: strategy,
		Tolerant:      conv.ConfigGet(cfg, "tolerant", false),
	}, nil
}

// BuildFilterNode 支持的过滤器：
//   - exclude：ids（静态列表）、key_prefix（用户列表前缀，存储取自 context）
//   - catalog：剔除快照特征库中不存在的物品
//   - expr：expr（CEL 表达式）、drop_on_error
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig := conv.ConfigGetMaps(cfg, "filters")
	if len(filtersConfig) == 0 {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		switch t := conv.ConfigGet(fc, "type", ""); t {
		case "exclude":
			filters = append(filters, &filter.ExcludeFilter{
				IDs:       conv.SliceAnyToString(fc["ids"]),
				KeyPrefix: conv.ConfigGet(fc, "key_prefix", ""),
			})
		case "catalog":
			filters = append(filters, snapshotCatalog{})
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""))
			if err != nil {
				return nil, err
			}
			f.DropOnError = conv.ConfigGet(fc, "drop_on_error", false)
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter type: %q (supported: exclude, catalog, expr)", t)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

// snapshotCatalog 按请求从快照解析目录，再交给 filter.CatalogFilter。
type snapshotCatalog struct{}

func (snapshotCatalog) Name() string { return "filter.catalog" }

func (s snapshotCatalog) Bind(ctx context.Context, _ *core.RecommendContext) (filter.Filter, error) {
	cat := catalogFrom(ctx)
	if cat == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "catalog filter: no feature store in context")
	}
	return &filter.CatalogFilter{Catalog: cat}, nil
}

func (s snapshotCatalog) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	f, err := s.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return f.ShouldFilter(ctx, rctx, item)
}

func catalogFrom(ctx context.Context) core.ItemCatalog {
	m, ok := recall.ModelsFrom(ctx)
	if !ok || m.Features() == nil {
		return nil
	}
	return m.Features()
}

func BuildFeatureEnrichNode(cfg map[string]any) (pipeline.Node, error) {
	return &feature.EnrichNode{
		CatalogFrom: catalogFrom,
		Keys:        conv.SliceAnyToString(cfg["keys"]),
	}, nil
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{
		Key:         conv.ConfigGet(cfg, "key", "genre"),
		MaxPerGroup: conv.ConfigGetInt(cfg, "max_per_group", 1),
	}, nil
}
