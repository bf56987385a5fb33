package recall

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/bookrec/core"
)

// RatingMatrix 是 用户 x 物品 的稀疏评分矩阵。
//
//   - 行按用户 ID、列按物品 ID 以 core.CompareIDs 升序排列
//   - 缺失项为 0，"未评分" 与 "评分为 0" 不可区分
//   - 同一 (用户, 物品) 出现多次时以最后一条为准
//   - 物品不在目录中的交互被跳过并计入 Skipped，不会静默丢弃
//   - 整行全为 0 的用户保留在矩阵中（参与分解），但不是“已知用户”
type RatingMatrix struct {
	users     []string
	userIndex map[string]int
	items     []string
	itemIndex map[string]int
	cells     map[[2]int]float64
	known     core.IDSet

	// Skipped 是因物品不在目录中而被跳过的交互数
	Skipped int
}

// NewRatingMatrix 由交互记录构建评分矩阵。catalog 为 nil 时不做目录校验。
func NewRatingMatrix(interactions []core.Interaction, catalog core.ItemCatalog) *RatingMatrix {
	latest := make(map[[2]string]float64, len(interactions))
	userSet := make(core.IDSet)
	itemSet := make(core.IDSet)
	skipped := 0
	for _, in := range interactions {
		if catalog != nil && !catalog.Has(in.ItemID) {
			skipped++
			continue
		}
		latest[[2]string{in.UserID, in.ItemID}] = in.Rating
		userSet.Add(in.UserID)
		itemSet.Add(in.ItemID)
	}

	m := &RatingMatrix{
		users:   userSet.Sorted(),
		items:   itemSet.Sorted(),
		cells:   make(map[[2]int]float64, len(latest)),
		known:   make(core.IDSet),
		Skipped: skipped,
	}
	m.userIndex = indexOf(m.users)
	m.itemIndex = indexOf(m.items)
	for key, rating := range latest {
		if rating == 0 {
			continue
		}
		m.cells[[2]int{m.userIndex[key[0]], m.itemIndex[key[1]]}] = rating
		m.known.Add(key[0])
	}
	return m
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}

// Rows 返回用户数。
func (m *RatingMatrix) Rows() int { return len(m.users) }

// Cols 返回物品数。
func (m *RatingMatrix) Cols() int { return len(m.items) }

// NNZ 返回非零评分数。
func (m *RatingMatrix) NNZ() int { return len(m.cells) }

// Users 返回行对应的用户 ID。
func (m *RatingMatrix) Users() []string { return append([]string(nil), m.users...) }

// Items 返回列对应的物品 ID。
func (m *RatingMatrix) Items() []string { return append([]string(nil), m.items...) }

// IsKnown 报告用户是否至少有一个非零评分。
func (m *RatingMatrix) IsKnown(userID string) bool { return m.known.Has(userID) }

// At 返回 (用户, 物品) 的评分，不存在时为 0。
func (m *RatingMatrix) At(userID, itemID string) float64 {
	u, ok := m.userIndex[userID]
	if !ok {
		return 0
	}
	i, ok := m.itemIndex[itemID]
	if !ok {
		return 0
	}
	return m.cells[[2]int{u, i}]
}

// Dense 返回稠密表示（SVD 需要稠密输入）。
func (m *RatingMatrix) Dense() *mat.Dense {
	d := mat.NewDense(m.Rows(), m.Cols(), nil)
	for key, v := range m.cells {
		d.Set(key[0], key[1], v)
	}
	return d
}

// FactorizeOptions 控制分解的资源上限。
type FactorizeOptions struct {
	// MaxCells 限制 rows*cols，超出时直接返回 INVALID_INPUT，不做任何计算；0 表示不限制
	MaxCells int
}

// Factorize 对评分矩阵做秩 k 截断 SVD，重建预测矩阵 U_k·Σ_k·V_kᵀ，
// 再对整个矩阵做全局 min-max 归一化到 [0,1]（全局最大值恰为 1，最小值恰为 0；
// 常数矩阵归一化为全 0）。
//
// 要求 0 < k < min(rows, cols)，否则返回 INVALID_RANK。
// 这是一次昂贵的批量计算：交互变化后需整体重建，不支持增量更新。
func Factorize(ctx context.Context, m *RatingMatrix, k int, opts FactorizeOptions) (*CFModel, error) {
	rows, cols := m.Rows(), m.Cols()
	if k <= 0 || k >= min(rows, cols) {
		return nil, core.NewInvalidRankError(core.ModuleCF, k, rows, cols)
	}
	if opts.MaxCells > 0 && rows*cols > opts.MaxCells {
		return nil, core.NewInvalidInputError(core.ModuleCF,
			fmt.Sprintf("matrix %dx%d exceeds max_cells %d", rows, cols, opts.MaxCells))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var svd mat.SVD
	if !svd.Factorize(m.Dense(), mat.SVDThin) {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeInternalError, "cf: svd factorization failed to converge")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 奇异值按降序排列，取前 k 个
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	us := mat.DenseCopyOf(u.Slice(0, rows, 0, k))
	for j := 0; j < k; j++ {
		s := values[j]
		for i := 0; i < rows; i++ {
			us.Set(i, j, us.At(i, j)*s)
		}
	}
	var pred mat.Dense
	pred.Mul(us, v.Slice(0, cols, 0, k).T())

	normalizeMinMax(&pred)

	return &CFModel{
		users:     m.users,
		userIndex: m.userIndex,
		items:     m.items,
		itemIndex: m.itemIndex,
		known:     m.known,
		pred:      &pred,
		rank:      k,
	}, nil
}

// normalizeMinMax 原地把矩阵映射到 [0,1]。
func normalizeMinMax(d *mat.Dense) {
	lo, hi := mat.Min(d), mat.Max(d)
	if hi == lo {
		d.Zero()
		return
	}
	span := hi - lo
	d.Apply(func(_, _ int, v float64) float64 {
		return (v - lo) / span
	}, d)
}

// CFModel 是一次分解的结果：归一化后的稠密预测评分矩阵。创建后不可变。
type CFModel struct {
	users     []string
	userIndex map[string]int
	items     []string
	itemIndex map[string]int
	known     core.IDSet
	pred      *mat.Dense
	rank      int
}

// Rank 返回分解的秩 k。
func (m *CFModel) Rank() int { return m.rank }

// Users 返回已知用户（至少一个非零评分）。
func (m *CFModel) Users() []string { return m.known.Sorted() }

// Items 返回矩阵列对应的物品。
func (m *CFModel) Items() []string { return append([]string(nil), m.items...) }

// Knows 报告用户是否在分解时已知。
func (m *CFModel) Knows(userID string) bool { return m.known.Has(userID) }

func (m *CFModel) row(userID string) ([]float64, error) {
	if !m.known.Has(userID) {
		return nil, core.NewUnknownUserError(core.ModuleCF, userID)
	}
	return m.pred.RawRowView(m.userIndex[userID]), nil
}

// Predict 返回归一化的预测评分。
func (m *CFModel) Predict(userID, itemID string) (float64, error) {
	row, err := m.row(userID)
	if err != nil {
		return 0, err
	}
	i, ok := m.itemIndex[itemID]
	if !ok {
		return 0, core.NewNotFoundError(core.ModuleCF, "item", itemID)
	}
	return row[i], nil
}

// Recommend 按预测评分降序（ID 升序平分）返回前 topN 个物品，不含 exclude。
// 冷启动用户（分解时不存在或评分全为 0）返回 UNKNOWN_USER，不猜测。
func (m *CFModel) Recommend(userID string, exclude core.IDSet, topN int) ([]*core.Item, error) {
	if err := checkTopN(core.ModuleCF, topN); err != nil {
		return nil, err
	}
	row, err := m.row(userID)
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, len(m.items))
	for i, id := range m.items {
		cands[i] = candidate{id: id, score: row[i]}
	}
	return toItems(rankCandidates(cands, exclude, topN), "cf"), nil
}

// ScoreRange 返回预测矩阵的最小值与最大值（归一化后应为 0 与 1，常数矩阵为 0 与 0）。
func (m *CFModel) ScoreRange() (lo, hi float64) {
	return mat.Min(m.pred), mat.Max(m.pred)
}
