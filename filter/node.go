package filter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器。
// 任何一个过滤器返回 true，该物品就会被过滤掉；过滤器出错时整个 Node 返回错误。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) bind(ctx context.Context, rctx *core.RecommendContext) ([]Filter, error) {
	bound := make([]Filter, len(n.Filters))
	for i, f := range n.Filters {
		b, ok := f.(RequestBinder)
		if !ok {
			bound[i] = f
			continue
		}
		bf, err := b.Bind(ctx, rctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		bound[i] = bf
	}
	return bound, nil
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters, err := n.bind(ctx, rctx)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	counts := make(map[string]int, len(filters))
	for _, item := range items {
		if item == nil {
			continue
		}
		reason := ""
		for _, f := range filters {
			drop, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				return nil, fmt.Errorf("%s on item %s: %w", f.Name(), item.ID, err)
			}
			if drop {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			counts[reason]++
			item.PutLabel("filtered", utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}

	if len(counts) > 0 {
		ev := zerolog.Ctx(ctx).Debug().Int("in", len(items)).Int("out", len(out))
		for name, c := range counts {
			ev = ev.Int(name, c)
		}
		ev.Msg("items filtered")
	}
	return out, nil
}
