package recall

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源并合并结果。
//
// 合并策略：
//   - first（默认）：按 ID 去重，保留 Sources 中靠前的结果，合并其他召回源的 Label
//   - priority：按 ID 去重，保留 Sources 中靠前的结果，不合并 Label
//   - union：不去重
//
// 任一召回源出错时默认整体返回错误；Tolerant 为 true 时记录日志并忽略失败的召回源，
// 只有全部失败才返回错误（合并全部错误）。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string
	Tolerant      bool
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

func (n *Fanout) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	errs := make([]error, len(n.Sources))

	g, gctx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		g.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		g.Go(func() error {
			recallCtx := gctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(gctx, n.Timeout)
				defer cancel()
			}
			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				errs[i] = err
				if n.Tolerant {
					zerolog.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Msg("recall source failed, skipped")
					return nil
				}
				return err
			}
			for _, it := range items {
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(i), Source: "recall"})
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(n.Sources) {
		return nil, errors.Join(errs...)
	}

	switch n.MergeStrategy {
	case "union":
		return mergeUnion(results), nil
	case "priority":
		return mergeByPriority(results), nil
	default:
		return mergeFirst(results), nil
	}
}

func mergeUnion(results [][]*core.Item) []*core.Item {
	var out []*core.Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out
}

// mergeFirst 按 ID 去重，保留首次出现的，并合并后来者的 Label。
func mergeFirst(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// mergeByPriority 结果已按 Sources 顺序排列，因此保留首次出现即保留优先级最高的召回源，
// 低优先级召回源的 Label 不合并。
func mergeByPriority(results [][]*core.Item) []*core.Item {
	seen := make(core.IDSet)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil || seen.Has(it.ID) {
				continue
			}
			seen.Add(it.ID)
			out = append(out, it)
		}
	}
	return out
}
