package recall

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/bookrec/core"
)

func coldStartInteractions() []core.Interaction {
	return []core.Interaction{
		{UserID: "u1", ItemID: "i1", Rating: 5},
		{UserID: "u1", ItemID: "i2", Rating: 3},
		{UserID: "u2", ItemID: "i2", Rating: 4},
		{UserID: "u2", ItemID: "i3", Rating: 2},
		{UserID: "u3", ItemID: "i1", Rating: 0}, // 全 0 行：冷启动
	}
}

func TestRatingMatrix(t *testing.T) {
	catalog := toyCatalog(t) // A B C
	m := NewRatingMatrix([]core.Interaction{
		{UserID: "2", ItemID: "B", Rating: 1},
		{UserID: "10", ItemID: "A", Rating: 4},
		{UserID: "2", ItemID: "B", Rating: 3}, // 重复：最后一条生效
		{UserID: "2", ItemID: "X", Rating: 5}, // 目录外
		{UserID: "3", ItemID: "C", Rating: 0},
	}, catalog)

	if m.Rows() != 3 || m.Cols() != 3 {
		t.Fatalf("shape = %dx%d, want 3x3", m.Rows(), m.Cols())
	}
	if !sameIDs(m.Users(), []string{"2", "3", "10"}) {
		t.Errorf("Users = %v", m.Users())
	}
	if m.At("2", "B") != 3 {
		t.Errorf("At(2,B) = %v, want last-wins 3", m.At("2", "B"))
	}
	if m.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", m.Skipped)
	}
	if m.IsKnown("3") {
		t.Errorf("user with all-zero row reported as known")
	}
	if m.NNZ() != 2 {
		t.Errorf("NNZ = %d, want 2", m.NNZ())
	}
}

func TestFactorize_ColdUser(t *testing.T) {
	m := NewRatingMatrix(coldStartInteractions(), nil)
	model, err := Factorize(context.Background(), m, 1, FactorizeOptions{})
	if err != nil {
		t.Fatalf("Factorize error = %v", err)
	}

	for _, user := range []string{"u3", "nobody"} {
		items, err := model.Recommend(user, nil, 10)
		if !core.IsUnknownUser(err) {
			t.Errorf("Recommend(%s) error = %v, want UNKNOWN_USER", user, err)
		}
		if items != nil {
			t.Errorf("Recommend(%s) returned %v alongside error", user, itemIDs(items))
		}
	}

	items, err := model.Recommend("u1", core.NewIDSet("i1"), 1)
	if err != nil {
		t.Fatalf("Recommend(u1) error = %v", err)
	}
	if len(items) != 1 || items[0].ID == "i1" {
		t.Errorf("Recommend(u1) = %v", itemIDs(items))
	}
}

func TestFactorize_InvalidRank(t *testing.T) {
	m := NewRatingMatrix(coldStartInteractions(), nil) // 3x3
	for _, k := range []int{-1, 0, 3, 4} {
		if _, err := Factorize(context.Background(), m, k, FactorizeOptions{}); !core.IsInvalidRank(err) {
			t.Errorf("Factorize(k=%d) error = %v, want INVALID_RANK", k, err)
		}
	}
}

func TestFactorize_MaxCells(t *testing.T) {
	m := NewRatingMatrix(coldStartInteractions(), nil)
	_, err := Factorize(context.Background(), m, 1, FactorizeOptions{MaxCells: 8})
	if !core.IsInvalidInput(err) {
		t.Fatalf("Factorize error = %v, want INVALID_INPUT", err)
	}
}

func TestFactorize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewRatingMatrix(coldStartInteractions(), nil)
	if _, err := Factorize(ctx, m, 1, FactorizeOptions{}); err != context.Canceled {
		t.Fatalf("Factorize error = %v, want context.Canceled", err)
	}
}

func TestFactorize_MinMaxRoundTrip(t *testing.T) {
	m := NewRatingMatrix([]core.Interaction{
		{UserID: "a", ItemID: "1", Rating: 5},
		{UserID: "a", ItemID: "2", Rating: 1},
		{UserID: "a", ItemID: "4", Rating: 2},
		{UserID: "b", ItemID: "1", Rating: 4},
		{UserID: "b", ItemID: "3", Rating: 5},
		{UserID: "c", ItemID: "2", Rating: 3},
		{UserID: "c", ItemID: "3", Rating: 1},
		{UserID: "d", ItemID: "4", Rating: 4},
	}, nil)
	model, err := Factorize(context.Background(), m, 2, FactorizeOptions{})
	if err != nil {
		t.Fatalf("Factorize error = %v", err)
	}
	lo, hi := model.ScoreRange()
	if lo != 0 || hi != 1 {
		t.Fatalf("ScoreRange = [%v, %v], want exactly [0, 1]", lo, hi)
	}
	for _, u := range model.Users() {
		for _, it := range model.Items() {
			p, err := model.Predict(u, it)
			if err != nil {
				t.Fatalf("Predict(%s,%s) error = %v", u, it, err)
			}
			if p < 0 || p > 1 {
				t.Errorf("Predict(%s,%s) = %v outside [0,1]", u, it, p)
			}
		}
	}
	if _, err := model.Predict("a", "99"); !core.IsNotFound(err) {
		t.Errorf("Predict(unknown item) error = %v, want NOT_FOUND", err)
	}
}

func TestFactorize_ExactLowRankReconstruction(t *testing.T) {
	// 秩 1 矩阵 [1 2 0; 2 4 0; 3 6 0]，k=1 时重建无损
	var in []core.Interaction
	for u, scale := range map[string]float64{"u1": 1, "u2": 2, "u3": 3} {
		in = append(in,
			core.Interaction{UserID: u, ItemID: "i1", Rating: scale},
			core.Interaction{UserID: u, ItemID: "i2", Rating: 2 * scale},
			core.Interaction{UserID: u, ItemID: "i3", Rating: 0},
		)
	}
	model, err := Factorize(context.Background(), NewRatingMatrix(in, nil), 1, FactorizeOptions{})
	if err != nil {
		t.Fatalf("Factorize error = %v", err)
	}
	want := map[[2]string]float64{
		{"u1", "i1"}: 1.0 / 6, {"u1", "i2"}: 2.0 / 6,
		{"u2", "i2"}: 4.0 / 6, {"u3", "i2"}: 1,
		{"u3", "i3"}: 0,
	}
	for key, w := range want {
		got, err := model.Predict(key[0], key[1])
		if err != nil {
			t.Fatalf("Predict%v error = %v", key, err)
		}
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("Predict%v = %v, want %v", key, got, w)
		}
	}
	if model.Rank() != 1 {
		t.Errorf("Rank = %d", model.Rank())
	}
}

func TestNormalizeMinMax_Constant(t *testing.T) {
	d := mat.NewDense(2, 2, []float64{3, 3, 3, 3})
	normalizeMinMax(d)
	if mat.Max(d) != 0 || mat.Min(d) != 0 {
		t.Errorf("constant matrix normalized to %v, want zeros", mat.Formatted(d))
	}
}

func TestCFRecall(t *testing.T) {
	model, err := Factorize(context.Background(), NewRatingMatrix(coldStartInteractions(), nil), 1, FactorizeOptions{})
	if err != nil {
		t.Fatalf("Factorize error = %v", err)
	}
	ctx := WithModels(context.Background(), staticModels{cf: model})
	r := &CFRecall{CandidateK: 10}

	items, err := r.Recall(ctx, &core.RecommendContext{UserID: "u2", Exclude: core.NewIDSet("i3")})
	if err != nil {
		t.Fatalf("Recall error = %v", err)
	}
	for _, it := range items {
		if it.ID == "i3" {
			t.Errorf("excluded item returned")
		}
	}
	if _, err := r.Recall(ctx, &core.RecommendContext{UserID: "u3"}); !core.IsUnknownUser(err) {
		t.Errorf("Recall(u3) error = %v, want UNKNOWN_USER", err)
	}
}
