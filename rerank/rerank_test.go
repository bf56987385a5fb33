package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/bookrec/core"
)

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortByScore(t *testing.T) {
	items := []*core.Item{
		core.NewScoredItem("B", 10),
		core.NewScoredItem("10", 1),
		nil,
		core.NewScoredItem("A", 10),
		core.NewScoredItem("9", 1),
		core.NewScoredItem("C", 20),
	}
	got := ids(SortByScore(items))
	want := []string{"C", "A", "B", "9", "10"}
	if !equalIDs(got, want) {
		t.Errorf("SortByScore = %v, want %v", got, want)
	}
}

func TestTopNNode(t *testing.T) {
	mk := func() []*core.Item {
		return []*core.Item{
			core.NewScoredItem("1", 0.1),
			core.NewScoredItem("2", 0.9),
			core.NewScoredItem("3", 0.5),
		}
	}
	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "truncate", n: 2, want: []string{"2", "3"}},
		{name: "zero keeps all", n: 0, want: []string{"2", "3", "1"}},
		{name: "larger than input", n: 10, want: []string{"2", "3", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TopNNode{N: tt.n}
			out, err := node.Process(context.Background(), nil, mk())
			if err != nil {
				t.Fatalf("Process error = %v", err)
			}
			if got := ids(out); !equalIDs(got, tt.want) {
				t.Errorf("Process = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiversity(t *testing.T) {
	withGenre := func(id, genre string) *core.Item {
		it := core.NewItem(id)
		if genre != "" {
			it.Meta["genre"] = genre
		}
		return it
	}
	items := []*core.Item{
		withGenre("1", "fantasy"),
		withGenre("2", "fantasy"),
		withGenre("3", "crime"),
		withGenre("4", ""),
		withGenre("5", "fantasy"),
		withGenre("6", "crime"),
	}
	out, _ := (&Diversity{MaxPerGroup: 2}).Process(context.Background(), nil, items)
	want := []string{"1", "2", "3", "4", "6"}
	if got := ids(out); !equalIDs(got, want) {
		t.Errorf("Diversity = %v, want %v", got, want)
	}
}
