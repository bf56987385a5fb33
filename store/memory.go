package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/bookrec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/单机部署。
// 支持 TTL（过期时间），进程重启后数据丢失。
//
// 有序集合的 ZRange 在分数相同时按成员 ID 升序（core.CompareIDs）返回，
// 与推荐链路的平分规则一致。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]entry
	zsets  map[string]map[string]float64 // zset key -> member -> score
	hashes map[string]map[string][]byte  // hash key -> field -> value
	now    func() time.Time

	interval time.Duration
	clean    *time.Ticker
	done     chan struct{}
	once     sync.Once
}

type entry struct {
	value  []byte
	expire time.Time // 零值表示永不过期
}

func (e entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && now.After(e.expire)
}

// MemoryOption 配置 MemoryStore。
type MemoryOption func(*MemoryStore)

// WithCleanupInterval 设置过期 key 的清理周期，<= 0 表示不启动后台清理。
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.interval = d }
}

// NewMemoryStore 创建内存存储，默认每 10 秒清理一次过期 key。
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		data:     make(map[string]entry),
		zsets:    make(map[string]map[string]float64),
		hashes:   make(map[string]map[string][]byte),
		now:      time.Now,
		interval: 10 * time.Second,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	if ms.interval > 0 {
		ms.clean = time.NewTicker(ms.interval)
		go ms.cleanup()
	}
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return m.now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = entry{value: value, expire: m.expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.zsets, key)
	delete(m.hashes, key)
	return nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := m.now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		result[k] = e.value
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expire := m.expireAt(ttl)
	for k, v := range kvs {
		m.data[k] = entry{value: v, expire: expire}
	}
	return nil
}

// Close 停止后台清理，可重复调用。
func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		if m.clean != nil {
			m.clean.Stop()
		}
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return m.ZAddBatch(ctx, key, map[string]float64{member: score})
}

// ZAddBatch 一次写入多个成员。
func (m *MemoryStore) ZAddBatch(ctx context.Context, key string, members map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	zset := m.zsets[key]
	if zset == nil {
		zset = make(map[string]float64, len(members))
		m.zsets[key] = zset
	}
	for member, score := range members {
		zset[member] = score
	}
	return nil
}

// ZReplace 用 members 整体替换有序集合，members 为空时删除 key。
func (m *MemoryStore) ZReplace(ctx context.Context, key string, members map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(members) == 0 {
		delete(m.zsets, key)
		return nil
	}
	m.zsets[key] = maps.Clone(members)
	return nil
}

// ZRange 按分数降序返回 [start, stop] 区间的成员，stop < 0 表示到末尾。
func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset := m.zsets[key]
	if len(zset) == 0 {
		return nil, nil
	}

	members := make([]string, 0, len(zset))
	for member := range zset {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := zset[members[i]], zset[members[j]]
		if si != sj {
			return si > sj
		}
		return core.CompareIDs(members[i], members[j]) < 0
	})

	n := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (m *MemoryStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.hashes[key]
	if h == nil {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

// HGetAll 返回 Hash 的副本，key 不存在时返回空 map。
func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(m.hashes[key]))
	maps.Copy(result, m.hashes[key])
	return result, nil
}
