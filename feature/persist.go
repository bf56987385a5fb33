package feature

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/sparse"
)

// 特征库在 core.Store 中的布局：
//
//	{prefix}:meta         -> {"dim": D}
//	{prefix}:items        -> ["id1", "id2", ...]（目录顺序）
//	{prefix}:item:{id}    -> {"indices": [...], "values": [...]}
//	{prefix}:display:{id} -> Hash，字段为展示元信息（title、genre ...），值为 JSON
const defaultKeyPrefix = "features"

type storeHeader struct {
	Dim int `json:"dim"`
}

type itemRecord struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

func keyPrefixOrDefault(prefix string) string {
	if prefix == "" {
		return defaultKeyPrefix
	}
	return prefix
}

func displayKey(prefix, id string) string { return prefix + ":display:" + id }

// SaveToStore 把特征库写入 KeyValueStore（Redis / 内存等）。
// 展示元信息按物品写成 Hash，旧 Hash 先删除，重复保存不会残留过期字段。
func SaveToStore(ctx context.Context, kv core.KeyValueStore, prefix string, s *Store) error {
	prefix = keyPrefixOrDefault(prefix)

	kvs := make(map[string][]byte, s.Len()+2)
	header, err := json.Marshal(storeHeader{Dim: s.Dim()})
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	kvs[prefix+":meta"] = header

	ids, err := json.Marshal(s.ids)
	if err != nil {
		return fmt.Errorf("marshal ids: %w", err)
	}
	kvs[prefix+":items"] = ids

	for i, id := range s.ids {
		rec := itemRecord{Indices: s.rows[i].Indices, Values: s.rows[i].Values}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", id, err)
		}
		kvs[prefix+":item:"+id] = data
	}

	if err := kv.BatchSet(ctx, kvs); err != nil {
		return err
	}

	for i, id := range s.ids {
		key := displayKey(prefix, id)
		if err := kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset display %s: %w", id, err)
		}
		for field, v := range s.meta[i] {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal item %s field %s: %w", id, field, err)
			}
			if err := kv.HSet(ctx, key, field, data); err != nil {
				return fmt.Errorf("save display %s: %w", id, err)
			}
		}
	}
	return nil
}

func loadDisplay(ctx context.Context, kv core.KeyValueStore, prefix, id string) (map[string]any, error) {
	fields, err := kv.HGetAll(ctx, displayKey(prefix, id))
	if err != nil {
		return nil, fmt.Errorf("load display %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(fields))
	for field, raw := range fields {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse item %s field %s: %w", id, field, err)
		}
		meta[field] = v
	}
	return meta, nil
}

// LoadFromStore 从 KeyValueStore 读取特征库。
// 目录中列出的任何物品缺少向量记录都会返回 NOT_FOUND，不构建残缺的特征库。
func LoadFromStore(ctx context.Context, kv core.KeyValueStore, prefix string) (*Store, error) {
	prefix = keyPrefixOrDefault(prefix)

	data, err := kv.Get(ctx, prefix+":meta")
	if err != nil {
		return nil, fmt.Errorf("load feature header: %w", err)
	}
	var header storeHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parse feature header: %w", err)
	}

	data, err = kv.Get(ctx, prefix+":items")
	if err != nil {
		return nil, fmt.Errorf("load feature ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse feature ids: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + ":item:" + id
	}
	records, err := kv.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load feature rows: %w", err)
	}

	b := NewBuilder(header.Dim)
	for i, id := range ids {
		raw, ok := records[keys[i]]
		if !ok {
			return nil, core.NewNotFoundError(core.ModuleFeature, "item", id)
		}
		var rec itemRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("parse item %s: %w", id, err)
		}
		vec, err := sparse.New(header.Dim, rec.Indices, rec.Values)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", id, err)
		}
		meta, err := loadDisplay(ctx, kv, prefix, id)
		if err != nil {
			return nil, err
		}
		if err := b.Add(id, vec, meta); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
