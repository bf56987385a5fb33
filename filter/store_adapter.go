package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/bookrec/core"
)

// StoreAdapter 将 core.Store 适配为过滤器所需的 ID 列表读取。
// 列表以 JSON 数组保存：["id1", "id2", ...]。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetIDList 读取 key 下的 ID 列表；key 不存在时返回空列表。
func (a *StoreAdapter) GetIDList(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse id list %s: %w", key, err)
	}
	return ids, nil
}

// GetUserList 读取 {keyPrefix}:{userID} 下的 ID 列表（如用户已读书单）。
func (a *StoreAdapter) GetUserList(ctx context.Context, keyPrefix, userID string) ([]string, error) {
	return a.GetIDList(ctx, keyPrefix+":"+userID)
}

// SetUserList 写入用户 ID 列表，覆盖原值。
func (a *StoreAdapter) SetUserList(ctx context.Context, keyPrefix, userID string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, keyPrefix+":"+userID, data)
}

type storeKey struct{}

// WithStore 把用户列表所在的存储挂到 context 上，供配置构建、未指定 Store 的 ExcludeFilter 使用。
func WithStore(ctx context.Context, s *StoreAdapter) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// StoreFrom 读取 WithStore 挂载的存储。
func StoreFrom(ctx context.Context) (*StoreAdapter, bool) {
	s, ok := ctx.Value(storeKey{}).(*StoreAdapter)
	return s, ok && s != nil
}
