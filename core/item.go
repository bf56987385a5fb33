package core

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/rushteam/bookrec/pkg/utils"
)

// Item 是推荐链路中的统一承载结构：ID、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
//
// 注意：不同模型的 Score 语义不同（余弦相似度 / 归一化预测评分 / 交互强度之和），
// 不能在未归一化的情况下跨模型直接比较。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// NewScoredItem 创建带分数的 Item。
func NewScoredItem(id string, score float64) *Item {
	it := NewItem(id)
	it.Score = score
	return it
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// CompareIDs 是全链路统一的物品 ID 顺序，用于所有平分情况下的排序。
// 十进制整数 ID 排在其余 ID 之前：整数之间按数值比较（数值相同再按字节序，如 "007" < "7"），
// 其余 ID 之间按字节序比较（GoodReads uid 是整数）。
func CompareIDs(a, b string) int {
	if a == b {
		return 0
	}
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// RankLess 是排序规则：分数降序，平分时 ID 升序。
func RankLess(a, b *Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return CompareIDs(a.ID, b.ID) < 0
}
