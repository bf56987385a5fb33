package recall

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/bookrec/core"
)

type stubSource struct {
	name  string
	items []string
	err   error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, len(s.items))
	for i, id := range s.items {
		out[i] = core.NewItem(id)
	}
	return out, nil
}

func TestFanout_Merge(t *testing.T) {
	sources := []Source{
		stubSource{name: "a", items: []string{"1", "2"}},
		stubSource{name: "b", items: []string{"2", "3"}},
	}
	tests := []struct {
		strategy string
		want     []string
	}{
		{strategy: "", want: []string{"1", "2", "3"}},
		{strategy: "priority", want: []string{"1", "2", "3"}},
		{strategy: "union", want: []string{"1", "2", "2", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			f := &Fanout{Sources: sources, MergeStrategy: tt.strategy, MaxConcurrent: 1}
			items, err := f.Process(context.Background(), &core.RecommendContext{}, nil)
			if err != nil {
				t.Fatalf("Process error = %v", err)
			}
			if got := itemIDs(items); !sameIDs(got, tt.want) {
				t.Errorf("Process = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFanout_Errors(t *testing.T) {
	boom := errors.New("boom")
	sources := []Source{
		stubSource{name: "ok", items: []string{"1"}},
		stubSource{name: "bad", err: boom},
	}

	if _, err := (&Fanout{Sources: sources}).Recall(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("strict Fanout error = %v, want boom", err)
	}

	items, err := (&Fanout{Sources: sources, Tolerant: true}).Recall(context.Background(), nil)
	if err != nil {
		t.Fatalf("tolerant Fanout error = %v", err)
	}
	if got := itemIDs(items); !sameIDs(got, []string{"1"}) {
		t.Errorf("tolerant Fanout = %v", got)
	}

	allBad := []Source{stubSource{name: "bad", err: boom}}
	if _, err := (&Fanout{Sources: allBad, Tolerant: true}).Recall(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("all-failed Fanout error = %v, want boom", err)
	}
}
