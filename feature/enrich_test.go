package feature

import (
	"context"
	"testing"

	"github.com/rushteam/bookrec/core"
)

func TestEnrichNode(t *testing.T) {
	s := toyStore(t)
	items := []*core.Item{core.NewItem("A"), core.NewItem("Z")}

	out, err := (&EnrichNode{Catalog: s}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process error = %v", err)
	}
	if out[0].Meta["title"] != "book A" {
		t.Errorf("A meta = %v", out[0].Meta)
	}
	if len(out[1].Meta) != 0 {
		t.Errorf("Z meta = %v, want empty", out[1].Meta)
	}

	resolved := &EnrichNode{
		CatalogFrom: func(context.Context) core.ItemCatalog { return s },
		Keys:        []string{"missing"},
	}
	out, _ = resolved.Process(context.Background(), nil, []*core.Item{core.NewItem("B")})
	if len(out[0].Meta) != 0 {
		t.Errorf("Keys filter not applied: %v", out[0].Meta)
	}

	if _, err := (&EnrichNode{}).Process(context.Background(), nil, items); err == nil {
		t.Errorf("Process without catalog should fail")
	}
}
