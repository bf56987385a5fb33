package feature

import (
	"errors"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/sparse"
)

func toyStore(t *testing.T) *Store {
	t.Helper()
	b := NewBuilder(2)
	for _, row := range []struct {
		id    string
		dense []float64
	}{
		{"A", []float64{1, 0}},
		{"B", []float64{0, 1}},
		{"C", []float64{1, 1}},
	} {
		if err := b.Add(row.id, sparse.FromDense(row.dense), map[string]any{"title": "book " + row.id}); err != nil {
			t.Fatalf("Add(%s) error = %v", row.id, err)
		}
	}
	return b.Build()
}

func TestStore_GetVector(t *testing.T) {
	s := toyStore(t)

	v, err := s.GetVector("C")
	if err != nil {
		t.Fatalf("GetVector(C) error = %v", err)
	}
	if v.At(0) != 1 || v.At(1) != 1 {
		t.Errorf("GetVector(C) = %v, want [1 1]", v.Dense())
	}

	_, err = s.GetVector("Z")
	if !core.IsNotFound(err) {
		t.Fatalf("GetVector(Z) error = %v, want NOT_FOUND", err)
	}
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("errors.Is(err, ErrNotFound) = false")
	}
}

func TestStore_GetVectors(t *testing.T) {
	s := toyStore(t)

	tests := []struct {
		name    string
		ids     []string
		wantErr bool
		want0   []float64
	}{
		{name: "order preserved", ids: []string{"B", "A"}, want0: []float64{0, 1}},
		{name: "empty input", ids: nil},
		{name: "one missing", ids: []string{"A", "X", "B"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetVectors(tt.ids)
			if tt.wantErr {
				if !core.IsNotFound(err) {
					t.Fatalf("GetVectors error = %v, want NOT_FOUND", err)
				}
				if got != nil {
					t.Errorf("GetVectors returned partial result %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetVectors error = %v", err)
			}
			if len(got) != len(tt.ids) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.ids))
			}
			if tt.want0 != nil {
				d := got[0].Dense()
				if d[0] != tt.want0[0] || d[1] != tt.want0[1] {
					t.Errorf("first vector = %v, want %v", d, tt.want0)
				}
			}
		})
	}
}

func TestBuilder_DimensionMismatch(t *testing.T) {
	b := NewBuilder(3)
	err := b.Add("A", sparse.FromDense([]float64{1, 0}), nil)
	if !core.IsInvalidInput(err) {
		t.Fatalf("Add error = %v, want INVALID_INPUT", err)
	}
}

func TestBuilder_DuplicateLastWins(t *testing.T) {
	b := NewBuilder(2)
	_ = b.Add("A", sparse.FromDense([]float64{1, 0}), nil)
	_ = b.Add("B", sparse.FromDense([]float64{0, 1}), nil)
	_ = b.Add("A", sparse.FromDense([]float64{0, 2}), map[string]any{"v": 2})
	s := b.Build()

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if ids := s.IDs(); ids[0] != "A" || ids[1] != "B" {
		t.Errorf("IDs = %v, want [A B]", ids)
	}
	v, _ := s.GetVector("A")
	if v.At(1) != 2 || v.At(0) != 0 {
		t.Errorf("A = %v, want last written [0 2]", v.Dense())
	}
	if s.Meta("A")["v"] != 2 {
		t.Errorf("Meta(A) = %v", s.Meta("A"))
	}
}

func TestStore_Catalog(t *testing.T) {
	var c core.ItemCatalog = toyStore(t)
	if !c.Has("A") || c.Has("Z") {
		t.Errorf("Has mismatch")
	}
	if c.Meta("Z") != nil {
		t.Errorf("Meta(Z) = %v, want nil", c.Meta("Z"))
	}
	if got := c.Meta("B")["title"]; got != "book B" {
		t.Errorf("Meta(B).title = %v", got)
	}
}
