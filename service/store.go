package service

import (
	"context"
	"fmt"

	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/store"
)

// OpenStore 按配置创建存储后端，调用方负责 Close。
func OpenStore(ctx context.Context, cfg config.StoreConfig) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
