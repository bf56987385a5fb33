package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/dsl"
)

// ExprFilter 保留表达式为 true 的物品，表达式为 CEL 语法（见 pkg/dsl）。
//
//	f, _ := filter.NewExprFilter(`item.meta.genre in rctx.params.genres`)
//
// 表达式访问不存在的字段会返回错误；DropOnError 为 true 时改为直接过滤该物品。
type ExprFilter struct {
	prg         *dsl.Program
	DropOnError bool
}

// NewExprFilter 编译表达式，编译错误在这里返回。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

// Expr 返回原始表达式。
func (f *ExprFilter) Expr() string { return f.prg.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	keep, err := f.prg.Eval(item, rctx)
	if err != nil {
		if f.DropOnError {
			return true, nil
		}
		return false, err
	}
	return !keep, nil
}
