package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/bookrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的 Label DSL 表达式（CEL 语法），编译一次、并发求值。
//
// 可用变量：
//   - item.id / item.score / item.meta / item.labels
//   - label.<key>：Label 的 Value
//   - rctx.user_id / rctx.scene / rctx.params / rctx.ratings
//
// 示例：
//   - `item.meta.genre in rctx.params.genres`：按类型圈定（热门兜底按用户选择的类型过滤）
//   - `label.recall_source == "cf" && item.score > 0.7`
//   - `has(item.meta.year) && item.meta.year >= 2000`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式为空时返回 nil Program（恒为 true）。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// Eval 对单个物品求值，表达式必须返回 bool。
// 访问不存在的 key 会返回错误，请用 has(...) 判断存在性。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if p == nil {
		return true, nil
	}
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Evaluate 编译并执行一次表达式，适合一次性调用；热路径请用 Compile。
func Evaluate(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(item, rctx)
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	labelValues := make(map[string]any)
	itemMap := map[string]any{"meta": map[string]any{}, "labels": labels}
	if item != nil {
		for k, v := range item.Labels {
			labels[k] = map[string]any{"value": v.Value, "source": v.Source}
			labelValues[k] = v.Value
		}
		itemMap["id"] = item.ID
		itemMap["score"] = item.Score
		itemMap["meta"] = orEmpty(item.Meta)
	}

	rctxMap := map[string]any{
		"params":  map[string]any{},
		"ratings": map[string]float64{},
	}
	if rctx != nil {
		rctxMap["user_id"] = rctx.UserID
		rctxMap["scene"] = rctx.Scene
		rctxMap["params"] = orEmpty(rctx.Params)
		rctxMap["ratings"] = orEmpty(rctx.Ratings)
	}

	return map[string]any{
		"item":  itemMap,
		"label": labelValues,
		"rctx":  rctxMap,
	}
}
