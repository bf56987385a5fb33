package conv

import (
	"testing"
	"time"
)

func TestConfigGetters(t *testing.T) {
	m := map[string]any{
		"name":     "hybrid",
		"yaml_int": 10,
		"json_num": 12.0,
		"weight":   1,
		"ids":      []any{"a", 42.0, true},
		"sources":  []any{map[string]any{"type": "cf"}, "junk"},
	}

	if got := ConfigGet(m, "name", ""); got != "hybrid" {
		t.Errorf("ConfigGet = %q", got)
	}
	if got := ConfigGet(m, "yaml_int", "fallback"); got != "fallback" {
		t.Errorf("type mismatch should return default, got %q", got)
	}
	if got := ConfigGetInt(m, "yaml_int", 0); got != 10 {
		t.Errorf("ConfigGetInt(yaml) = %d", got)
	}
	if got := ConfigGetInt(m, "json_num", 0); got != 12 {
		t.Errorf("ConfigGetInt(json) = %d", got)
	}
	if got := ConfigGetInt(m, "missing", 7); got != 7 {
		t.Errorf("ConfigGetInt default = %d", got)
	}
	if got := ConfigGetFloat64(m, "weight", 0.5); got != 1 {
		t.Errorf("ConfigGetFloat64 = %v", got)
	}
	if got := ConfigGetFloat64(m, "name", 0.5); got != 0.5 {
		t.Errorf("ConfigGetFloat64 default = %v", got)
	}

	ids := SliceAnyToString(m["ids"])
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "42" {
		t.Errorf("SliceAnyToString = %v", ids)
	}
	if got := ConfigGetMaps(m, "sources"); len(got) != 1 || got[0]["type"] != "cf" {
		t.Errorf("ConfigGetMaps = %v", got)
	}
	if got := ConfigGet[string](nil, "x", "d"); got != "d" {
		t.Errorf("nil map should return default, got %q", got)
	}
}

func TestConfigGetDuration(t *testing.T) {
	m := map[string]any{"s": "500ms", "n": 2, "bad": "soon", "wrong": []any{}}

	if d, err := ConfigGetDuration(m, "s", 0); err != nil || d != 500*time.Millisecond {
		t.Errorf("string duration = %v, %v", d, err)
	}
	if d, err := ConfigGetDuration(m, "n", 0); err != nil || d != 2*time.Second {
		t.Errorf("numeric duration = %v, %v", d, err)
	}
	if d, err := ConfigGetDuration(m, "missing", time.Second); err != nil || d != time.Second {
		t.Errorf("default duration = %v, %v", d, err)
	}
	if _, err := ConfigGetDuration(m, "bad", 0); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ConfigGetDuration(m, "wrong", 0); err == nil {
		t.Error("expected type error")
	}
}
