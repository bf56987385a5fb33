// Package feature 提供特征库（Feature Store）：每个物品一行稀疏特征向量（TF-IDF），
// 以及 item_id -> 行号的索引。
//
// 特征库由 Builder 一次性构建，构建完成后不可变，可被任意多个请求并发读取。
package feature

import (
	"fmt"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/sparse"
)

// Store 是不可变的物品特征库。
// 所有行向量共享同一个词表，维度均为 Dim()。
type Store struct {
	dim   int
	ids   []string
	index map[string]int
	rows  []sparse.Vector
	meta  []map[string]any
}

// Builder 用于构建 Store。同一 ID 重复添加时以最后一次为准（保留首次出现的位置）。
type Builder struct {
	dim   int
	ids   []string
	index map[string]int
	rows  []sparse.Vector
	meta  []map[string]any
}

// NewBuilder 创建维度为 dim 的特征库构建器。
func NewBuilder(dim int) *Builder {
	return &Builder{
		dim:   dim,
		index: make(map[string]int),
	}
}

// Add 添加一个物品。向量维度必须与构建器一致。
func (b *Builder) Add(id string, vec sparse.Vector, meta map[string]any) error {
	if id == "" {
		return core.NewInvalidInputError(core.ModuleFeature, "empty item id")
	}
	if vec.Dim != b.dim {
		return core.NewInvalidInputError(core.ModuleFeature,
			fmt.Sprintf("item %q has dimension %d, store dimension is %d", id, vec.Dim, b.dim))
	}
	if i, ok := b.index[id]; ok {
		b.rows[i] = vec
		b.meta[i] = meta
		return nil
	}
	b.index[id] = len(b.ids)
	b.ids = append(b.ids, id)
	b.rows = append(b.rows, vec)
	b.meta = append(b.meta, meta)
	return nil
}

// Len 返回已添加的物品数。
func (b *Builder) Len() int { return len(b.ids) }

// Build 冻结并返回 Store，Builder 之后不应再使用。
func (b *Builder) Build() *Store {
	s := &Store{
		dim:   b.dim,
		ids:   b.ids,
		index: b.index,
		rows:  b.rows,
		meta:  b.meta,
	}
	*b = Builder{}
	return s
}

// Dim 返回特征维度 D。
func (s *Store) Dim() int { return s.dim }

// Len 返回物品数。
func (s *Store) Len() int { return len(s.ids) }

// Has 实现 core.ItemCatalog。
func (s *Store) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs 按目录顺序返回全部物品 ID 的副本。
func (s *Store) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Meta 返回物品展示元信息（标题、类型等），不存在时返回 nil。
func (s *Store) Meta(id string) map[string]any {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.meta[i]
}

// Row 返回第 i 行的 ID 与向量。
func (s *Store) Row(i int) (string, sparse.Vector) {
	return s.ids[i], s.rows[i]
}

// GetVector 返回物品的特征向量，物品不存在时返回 NOT_FOUND。
func (s *Store) GetVector(id string) (sparse.Vector, error) {
	i, ok := s.index[id]
	if !ok {
		return sparse.Vector{}, core.NewNotFoundError(core.ModuleFeature, "item", id)
	}
	return s.rows[i], nil
}

// GetVectors 按输入顺序返回多个物品的特征向量。
// 全有或全无：任何一个 ID 缺失都返回 NOT_FOUND（指出第一个缺失的 ID），不返回部分结果。
func (s *Store) GetVectors(ids []string) ([]sparse.Vector, error) {
	out := make([]sparse.Vector, len(ids))
	for k, id := range ids {
		i, ok := s.index[id]
		if !ok {
			return nil, core.NewNotFoundError(core.ModuleFeature, "item", id)
		}
		out[k] = s.rows[i]
	}
	return out, nil
}

var _ core.ItemCatalog = (*Store)(nil)
