package sparse

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestNew_MergesAndSorts(t *testing.T) {
	v, err := New(5, []int{3, 1, 3, 4}, []float64{1, 2, 1, 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := v.Indices, []int{1, 3}; len(got) != len(want) || got[0] != 1 || got[1] != 3 {
		t.Fatalf("Indices = %v, want %v", got, want)
	}
	if v.At(3) != 2 || v.At(1) != 2 || v.At(0) != 0 {
		t.Errorf("unexpected values: %v", v.Dense())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(2, []int{2}, []float64{1}); err == nil {
		t.Error("expected out-of-range error")
	}
	if _, err := New(2, []int{0, 1}, []float64{1}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestDotAndCosine(t *testing.T) {
	a := FromDense([]float64{1, 0, 2, 0})
	b := FromDense([]float64{0, 3, 4, 1})
	if got := Dot(a, b); got != 8 {
		t.Errorf("Dot() = %v, want 8", got)
	}
	if got := Cosine(a, a); math.Abs(got-1) > eps {
		t.Errorf("Cosine(a, a) = %v, want 1", got)
	}
	if got := Cosine(a, Vector{Dim: 4}); got != 0 {
		t.Errorf("Cosine with zero vector = %v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	v := FromDense([]float64{3, 4})
	n, err := v.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if math.Abs(n.Norm()-1) > eps {
		t.Errorf("norm = %v, want 1", n.Norm())
	}
	if v.At(0) != 3 {
		t.Error("Normalize must not mutate the receiver")
	}
	if _, err := (Vector{Dim: 2}).Normalize(); err == nil {
		t.Error("expected error for zero vector")
	}
}

func TestWeightedSum(t *testing.T) {
	a := FromDense([]float64{1, 0})
	b := FromDense([]float64{1, 1})
	got, err := WeightedSum([]Vector{a, b}, []float64{2, 3})
	if err != nil {
		t.Fatalf("WeightedSum() error = %v", err)
	}
	if got.At(0) != 5 || got.At(1) != 3 {
		t.Errorf("WeightedSum() = %v, want [5 3]", got.Dense())
	}
	if _, err := WeightedSum([]Vector{a, FromDense([]float64{1})}, []float64{1, 1}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
