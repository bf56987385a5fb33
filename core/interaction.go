package core

import "sort"

// Interaction 是一条 (用户, 物品, 评分强度) 交互记录。
// Rating 是实数，不限于 1-5（可以是衰减后的隐式反馈强度）。
// 同一 (UserID, ItemID) 预期只有一条记录；违反时以最后一条为准。
type Interaction struct {
	UserID string  `json:"user_id" yaml:"user_id"`
	ItemID string  `json:"item_id" yaml:"item_id"`
	Rating float64 `json:"rating" yaml:"rating"`
}

// IDSet 是物品 ID 集合，用于 items_to_ignore 等场景。
type IDSet map[string]struct{}

// NewIDSet 由给定 ID 创建集合。
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has 对 nil 集合返回 false。
func (s IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s IDSet) Len() int { return len(s) }

// Union 返回新集合，不修改任何输入。
func (s IDSet) Union(others ...IDSet) IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, o := range others {
		for id := range o {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted 按 CompareIDs 顺序返回集合内容。
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return CompareIDs(out[i], out[j]) < 0 })
	return out
}

// ItemCatalog 是物品目录的只读视图。
// 任何排序结果中的 ID 都必须存在于目录中。
type ItemCatalog interface {
	Has(id string) bool
	IDs() []string
	Meta(id string) map[string]any
}
