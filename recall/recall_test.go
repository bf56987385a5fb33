package recall

import (
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/pkg/sparse"
)

// staticModels 是测试用的快照。
type staticModels struct {
	fs  *feature.Store
	cf  *CFModel
	pop *Popularity
}

func (m staticModels) Features() *feature.Store { return m.fs }
func (m staticModels) CF() *CFModel             { return m.cf }
func (m staticModels) Popularity() *Popularity  { return m.pop }

func denseStore(t *testing.T, dim int, rows map[string][]float64, order ...string) *feature.Store {
	t.Helper()
	b := feature.NewBuilder(dim)
	for _, id := range order {
		if err := b.Add(id, sparse.FromDense(rows[id]), nil); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	return b.Build()
}

// toyCatalog 是 A:[1,0] B:[0,1] C:[1,1]。
func toyCatalog(t *testing.T) *feature.Store {
	return denseStore(t, 2, map[string][]float64{
		"A": {1, 0},
		"B": {0, 1},
		"C": {1, 1},
	}, "A", "B", "C")
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sameIDs(a, b []string) bool {
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
