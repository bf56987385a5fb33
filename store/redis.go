package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/bookrec/core"
)

// RedisConfig 是 RedisStore 的连接配置。
type RedisConfig struct {
	Addr        string        `yaml:"addr" koanf:"addr"`
	Password    string        `yaml:"password" koanf:"password"`
	DB          int           `yaml:"db" koanf:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout" koanf:"dial_timeout"`
}

// RedisStore 是 Redis 实现的 KeyValueStore。
// 生产环境用于保存特征库、热门榜单（有序集合）和用户排除列表。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 建立连接并 Ping 一次，连接失败返回 UNAVAILABLE。
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("store: redis %s unreachable: %v", cfg.Addr, err))
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient 包装已有客户端（共享连接池）。
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func notFound(err error) error {
	if errors.Is(err, redis.Nil) {
		return core.ErrStoreNotFound
	}
	return err
}

func expiration(ttl []int) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Duration(ttl[0]) * time.Second
	}
	return 0
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, notFound(err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return r.client.Set(ctx, key, value, expiration(ttl)).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		if s, ok := vals[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	if len(kvs) == 0 {
		return nil
	}
	exp := expiration(ttl)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range kvs {
			pipe.Set(ctx, k, v, exp)
		}
		return nil
	})
	return err
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZAddBatch 用一条 ZADD 写入全部成员。
func (r *RedisStore) ZAddBatch(ctx context.Context, key string, members map[string]float64) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for member, score := range members {
		zs = append(zs, redis.Z{Score: score, Member: member})
	}
	return r.client.ZAdd(ctx, key, zs...).Err()
}

// ZReplace 在一个 MULTI/EXEC 中写入临时 key 再 RENAME 覆盖 key，members 为空时删除 key。
func (r *RedisStore) ZReplace(ctx context.Context, key string, members map[string]float64) error {
	if len(members) == 0 {
		return r.client.Del(ctx, key).Err()
	}
	zs := make([]redis.Z, 0, len(members))
	for member, score := range members {
		zs = append(zs, redis.Z{Score: score, Member: member})
	}
	tmp := key + ":publishing"
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tmp)
		pipe.ZAdd(ctx, tmp, zs...)
		pipe.Rename(ctx, tmp, key)
		return nil
	})
	return err
}

// ZRange 按分数降序返回成员。同分成员的顺序由 Redis 决定（字典序逆序），调用方需自行稳定排序。
func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, key, start, stop).Result()
}

func (r *RedisStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	score, err := r.client.ZScore(ctx, key, member).Result()
	if err != nil {
		return 0, notFound(err)
	}
	return score, nil
}

func (r *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := r.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, notFound(err)
	}
	return val, nil
}

func (r *RedisStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return r.client.HSet(ctx, key, field, value).Err()
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(vals))
	for k, v := range vals {
		result[k] = []byte(v)
	}
	return result, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var (
	_ core.KeyValueStore = (*RedisStore)(nil)
	_ core.ZSetBatcher   = (*RedisStore)(nil)
	_ core.ZSetBatcher   = (*MemoryStore)(nil)
)
