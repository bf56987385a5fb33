package recall

import (
	"fmt"
	"sort"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/utils"
)

// defaults 提供 TopN / CandidateK / Rank 的默认值。
var defaults core.RecallConfig = &core.DefaultRecallConfig{}

// candidate 是打分阶段的轻量结构，只有进入 TopN 的候选才会物化为 core.Item。
type candidate struct {
	id    string
	score float64
}

// rankCandidates 排除 exclude 中的 ID，按分数降序、ID 升序排序后截取 topN。
// 输入切片会被原地重排。
func rankCandidates(cands []candidate, exclude core.IDSet, topN int) []candidate {
	kept := cands[:0]
	for _, c := range cands {
		if !exclude.Has(c.id) {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return core.CompareIDs(kept[i].id, kept[j].id) < 0
	})
	if len(kept) > topN {
		kept = kept[:topN]
	}
	return kept
}

// toItems 物化为 core.Item，并打上召回来源与分数 Label。
func toItems(cands []candidate, source string) []*core.Item {
	out := make([]*core.Item, len(cands))
	for i, c := range cands {
		it := core.NewScoredItem(c.id, c.score)
		it.PutLabel("recall_source", utils.Label{Value: source, Source: "recall"})
		it.PutLabel("score_"+source, utils.ScoreLabel(c.score, "recall"))
		out[i] = it
	}
	return out
}

func checkTopN(module string, topN int) error {
	if topN <= 0 {
		return core.NewInvalidInputError(module, fmt.Sprintf("top_n must be positive, got %d", topN))
	}
	return nil
}

func candidateK(k int) int {
	if k > 0 {
		return k
	}
	return defaults.DefaultCandidateK()
}
