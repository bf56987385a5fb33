package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行各 Node。任一 Node 出错即停止，错误以 Node 名称包装（保留 %w 链）。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	logger := zerolog.Ctx(ctx)
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		logger.Debug().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Msg("node processed")
		cur = next
	}
	return cur, nil
}
