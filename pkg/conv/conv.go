// Package conv 提供 YAML/JSON 解析结果（map[string]any）的类型转换工具，供配置驱动的 Node 构建使用。
package conv

import (
	"fmt"
	"time"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int。
// 支持 int、int64、int32、float64、float32。
func ToInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// SliceAnyToString 将 []any 转为 []string。
// 元素为 string 直接保留，为数字时格式化为 "%.0f"（YAML 中写成数字的书籍 ID）。
func SliceAnyToString(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	return ConvertSlice(raw, func(e any) (string, bool) {
		if s, ok := e.(string); ok {
			return s, true
		}
		if f, ok := ToFloat64(e); ok {
			return fmt.Sprintf("%.0f", f), true
		}
		return "", false
	})
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 取整数。YAML 得到 int，JSON 得到 float64，此处统一。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if n, ok := ToInt(m[key]); ok {
		return n
	}
	return defaultVal
}

// ConfigGetFloat64 取浮点数，整数字面量（如 weight_cb: 1）同样接受。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	switch m[key].(type) {
	case float64, float32, int, int64, int32:
		f, _ := ToFloat64(m[key])
		return f
	default:
		return defaultVal
	}
}

// ConfigGetDuration 取时长：字符串按 time.ParseDuration 解析（"500ms"），数字视为秒。
func ConfigGetDuration(m map[string]any, key string, defaultVal time.Duration) (time.Duration, error) {
	switch v := m[key].(type) {
	case nil:
		return defaultVal, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	default:
		sec, ok := ToFloat64(v)
		if !ok {
			return 0, fmt.Errorf("%s: unsupported duration %T", key, v)
		}
		return time.Duration(sec * float64(time.Second)), nil
	}
}

// ConfigGetMaps 取对象列表（如 fanout 的 sources、filter 的 filters），非对象元素被跳过。
func ConfigGetMaps(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	return ConvertSlice(raw, func(e any) (map[string]any, bool) {
		sub, ok := e.(map[string]any)
		return sub, ok
	})
}
