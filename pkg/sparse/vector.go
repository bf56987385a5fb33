// Package sparse 提供定长稀疏向量（TF-IDF 行向量、用户画像）。
//
// 向量以 (Indices, Values) 两个并行切片表示，Indices 严格递增且不含 0 值。
// 向量创建后视为不可变：所有运算都返回新向量。
package sparse

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Vector 是维度为 Dim 的稀疏向量。
type Vector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// New 由索引/值构建向量，会排序、合并重复索引并丢弃 0 值。
func New(dim int, indices []int, values []float64) (Vector, error) {
	if len(indices) != len(values) {
		return Vector{}, fmt.Errorf("sparse: indices/values length mismatch: %d != %d", len(indices), len(values))
	}
	acc := make(map[int]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= dim {
			return Vector{}, fmt.Errorf("sparse: index %d out of range [0,%d)", idx, dim)
		}
		acc[idx] += values[i]
	}
	return fromMap(dim, acc), nil
}

// FromDense 由稠密切片构建稀疏向量。
func FromDense(dense []float64) Vector {
	v := Vector{Dim: len(dense)}
	for i, x := range dense {
		if x != 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, x)
		}
	}
	return v
}

func fromMap(dim int, m map[int]float64) Vector {
	idx := make([]int, 0, len(m))
	for i, x := range m {
		if x != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	vals := make([]float64, len(idx))
	for j, i := range idx {
		vals[j] = m[i]
	}
	return Vector{Dim: dim, Indices: idx, Values: vals}
}

// NNZ 返回非零元素个数。
func (v Vector) NNZ() int { return len(v.Indices) }

// At 返回第 i 维的值。
func (v Vector) At(i int) float64 {
	j := sort.SearchInts(v.Indices, i)
	if j < len(v.Indices) && v.Indices[j] == i {
		return v.Values[j]
	}
	return 0
}

// Dense 返回稠密表示。
func (v Vector) Dense() []float64 {
	out := make([]float64, v.Dim)
	for j, i := range v.Indices {
		out[i] = v.Values[j]
	}
	return out
}

// Norm 返回 L2 范数。
func (v Vector) Norm() float64 {
	return floats.Norm(v.Values, 2)
}

// Dot 计算两个稀疏向量的点积（双指针归并）。
func Dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine 计算余弦相似度；任一向量为零向量时返回 0。
func Cosine(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Scale 返回 v * s。
func (v Vector) Scale(s float64) Vector {
	if s == 0 {
		return Vector{Dim: v.Dim}
	}
	vals := make([]float64, len(v.Values))
	copy(vals, v.Values)
	floats.Scale(s, vals)
	idx := make([]int, len(v.Indices))
	copy(idx, v.Indices)
	return Vector{Dim: v.Dim, Indices: idx, Values: vals}
}

// Normalize 返回 L2 归一化后的向量；零向量返回 error。
func (v Vector) Normalize() (Vector, error) {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Vector{}, fmt.Errorf("sparse: cannot normalize vector with norm %v", n)
	}
	return v.Scale(1 / n), nil
}

// WeightedSum 计算 Σ(weights[i] * vectors[i])，所有向量维度必须一致。
func WeightedSum(vectors []Vector, weights []float64) (Vector, error) {
	if len(vectors) != len(weights) {
		return Vector{}, fmt.Errorf("sparse: %d vectors but %d weights", len(vectors), len(weights))
	}
	if len(vectors) == 0 {
		return Vector{}, fmt.Errorf("sparse: no vectors")
	}
	dim := vectors[0].Dim
	acc := make([]float64, dim)
	for k, v := range vectors {
		if v.Dim != dim {
			return Vector{}, fmt.Errorf("sparse: dimension mismatch: %d != %d", v.Dim, dim)
		}
		w := weights[k]
		for j, i := range v.Indices {
			acc[i] += w * v.Values[j]
		}
	}
	return FromDense(acc), nil
}
