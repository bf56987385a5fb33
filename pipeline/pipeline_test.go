package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rushteam/bookrec/core"
)

type appendNode struct {
	name string
	id   string
}

func (n *appendNode) Name() string { return n.name }
func (n *appendNode) Kind() Kind   { return KindRecall }

func (n *appendNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return append(items, core.NewItem(n.id)), nil
}

type failNode struct{ err error }

func (n *failNode) Name() string { return "fail" }
func (n *failNode) Kind() Kind   { return KindFilter }

func (n *failNode) Process(context.Context, *core.RecommendContext, []*core.Item) ([]*core.Item, error) {
	return nil, n.err
}

func TestPipeline_RunOrder(t *testing.T) {
	p := &Pipeline{Nodes: []Node{
		&appendNode{name: "a", id: "1"},
		&appendNode{name: "b", id: "2"},
	}}
	out, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || out[0].ID != "1" || out[1].ID != "2" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestPipeline_RunWrapsNodeError(t *testing.T) {
	cause := core.NewUnknownUserError(core.ModuleCF, "u1")
	p := &Pipeline{Nodes: []Node{
		&appendNode{name: "a", id: "1"},
		&failNode{err: cause},
		&appendNode{name: "never", id: "2"},
	}}
	_, err := p.Run(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "node fail") {
		t.Errorf("error should name the node: %v", err)
	}
	if !core.IsUnknownUser(err) {
		t.Errorf("wrapped error lost its code: %v", err)
	}
}

func TestPipeline_RunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Pipeline{Nodes: []Node{&appendNode{name: "a", id: "1"}}}
	if _, err := p.Run(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

const testYAML = `
pipeline:
  name: reader_home
  nodes:
    - type: test.append
      config:
        id: "7"
    - type: test.append
`

func TestConfig_BuildPipeline(t *testing.T) {
	cfg, err := ParseYAML([]byte(testYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if cfg.Pipeline.Name != "reader_home" || len(cfg.Pipeline.Nodes) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	f := NewNodeFactory()
	f.Register("test.append", func(c map[string]any) (Node, error) {
		id, _ := c["id"].(string)
		if id == "" {
			id = "default"
		}
		return &appendNode{name: "append", id: id}, nil
	})
	if got := f.Types(); len(got) != 1 || got[0] != "test.append" {
		t.Fatalf("Types = %v", got)
	}

	p, err := cfg.BuildPipeline(f)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	out, err := p.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || out[0].ID != "7" || out[1].ID != "default" {
		t.Fatalf("unexpected items: %v, %v", out[0].ID, out[1].ID)
	}
}

func TestConfig_BuildPipelineErrors(t *testing.T) {
	f := NewNodeFactory()

	empty := &Config{}
	if _, err := empty.BuildPipeline(f); err == nil {
		t.Error("expected error for a pipeline without nodes")
	}

	cfg, err := ParseYAML([]byte(testYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	_, err = cfg.BuildPipeline(f)
	if err == nil || !strings.Contains(err.Error(), "unknown node type") {
		t.Fatalf("expected unknown node type error, got %v", err)
	}
}
