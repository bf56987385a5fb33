package feature

import (
	"context"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/sparse"
	"github.com/rushteam/bookrec/store"
)

func TestSaveLoadStore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore(store.WithCleanupInterval(0))
	defer kv.Close()

	orig, _, err := BuildStore([]Document{
		{ID: "1", Text: "wizard school magic", Meta: map[string]any{"title": "W"}},
		{ID: "2", Text: "space opera robots"},
		{ID: "3", Text: "magic robots"},
	})
	if err != nil {
		t.Fatalf("BuildStore error = %v", err)
	}
	if err := SaveToStore(ctx, kv, "books", orig); err != nil {
		t.Fatalf("SaveToStore error = %v", err)
	}

	loaded, err := LoadFromStore(ctx, kv, "books")
	if err != nil {
		t.Fatalf("LoadFromStore error = %v", err)
	}
	if loaded.Dim() != orig.Dim() || loaded.Len() != orig.Len() {
		t.Fatalf("loaded dim/len = %d/%d, want %d/%d", loaded.Dim(), loaded.Len(), orig.Dim(), orig.Len())
	}
	for i, id := range orig.IDs() {
		if loaded.IDs()[i] != id {
			t.Errorf("id order differs at %d", i)
		}
		a, _ := orig.GetVector(id)
		b, _ := loaded.GetVector(id)
		for j := 0; j < a.Dim; j++ {
			if a.At(j) != b.At(j) {
				t.Fatalf("vector %s differs at %d: %v != %v", id, j, a.At(j), b.At(j))
			}
		}
	}
	if loaded.Meta("1")["title"] != "W" {
		t.Errorf("Meta(1) = %v", loaded.Meta("1"))
	}
}

func TestLoadFromStore_MissingRow(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore(store.WithCleanupInterval(0))
	defer kv.Close()

	_ = kv.Set(ctx, "features:meta", []byte(`{"dim":2}`))
	_ = kv.Set(ctx, "features:items", []byte(`["1","2"]`))
	_ = kv.Set(ctx, "features:item:1", []byte(`{"indices":[0],"values":[1]}`))

	_, err := LoadFromStore(ctx, kv, "")
	if !core.IsNotFound(err) {
		t.Fatalf("LoadFromStore error = %v, want NOT_FOUND", err)
	}
}

func TestLoadFromStore_Empty(t *testing.T) {
	kv := store.NewMemoryStore(store.WithCleanupInterval(0))
	defer kv.Close()

	_, err := LoadFromStore(context.Background(), kv, "nothing")
	if !core.IsStoreNotFound(err) {
		t.Fatalf("LoadFromStore error = %v, want store not found", err)
	}
}

func TestSaveToStore_DisplayHash(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore(store.WithCleanupInterval(0))
	defer kv.Close()

	b := NewBuilder(2)
	_ = b.Add("1", sparse.FromDense([]float64{1, 0}), map[string]any{"title": "W", "year": 1997})
	_ = b.Add("2", sparse.FromDense([]float64{0, 1}), nil)
	if err := SaveToStore(ctx, kv, "books", b.Build()); err != nil {
		t.Fatalf("SaveToStore error = %v", err)
	}
	raw, err := kv.HGet(ctx, "books:display:1", "title")
	if err != nil || string(raw) != `"W"` {
		t.Fatalf("HGet(title) = %s, %v", raw, err)
	}

	loaded, err := LoadFromStore(ctx, kv, "books")
	if err != nil {
		t.Fatalf("LoadFromStore error = %v", err)
	}
	if m := loaded.Meta("1"); m["title"] != "W" || m["year"] != float64(1997) {
		t.Errorf("Meta(1) = %v", m)
	}
	if m := loaded.Meta("2"); len(m) != 0 {
		t.Errorf("Meta(2) = %v, want empty", m)
	}

	b = NewBuilder(2)
	_ = b.Add("1", sparse.FromDense([]float64{1, 0}), map[string]any{"genre": "fantasy"})
	if err := SaveToStore(ctx, kv, "books", b.Build()); err != nil {
		t.Fatalf("SaveToStore error = %v", err)
	}
	loaded, err = LoadFromStore(ctx, kv, "books")
	if err != nil {
		t.Fatalf("LoadFromStore error = %v", err)
	}
	if m := loaded.Meta("1"); len(m) != 1 || m["genre"] != "fantasy" {
		t.Errorf("Meta(1) after re-save = %v, want only genre", m)
	}
}
