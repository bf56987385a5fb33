package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/store"
)

// EnvPrefix 是引擎配置的环境变量前缀：BOOKREC_HYBRID_WEIGHT_CB -> hybrid.weight_cb。
const EnvPrefix = "BOOKREC_"

// Strategies 是 EngineConfig.Strategy 可选的推荐策略。
var Strategies = []string{"auto", "content", "collaborative", "hybrid", "popularity"}

// EngineConfig 是推荐引擎的运行配置。
//
// 加载顺序（后者覆盖前者）：结构体默认值 -> YAML 文件（可选）-> BOOKREC_ 环境变量。
type EngineConfig struct {
	// TopN 请求未指定数量时的默认返回条数
	TopN int `koanf:"top_n"`

	// Strategy 请求未指定策略时使用的默认策略
	Strategy string `koanf:"strategy"`

	// Rank 协同过滤的分解秩 k
	Rank int `koanf:"rank"`

	// MaxMatrixCells 限制评分矩阵 rows*cols，0 表示不限制
	MaxMatrixCells int `koanf:"max_matrix_cells"`

	// Workers 批量推荐的并发数
	Workers int `koanf:"workers"`

	// ProfileCacheSize 每个快照的用户画像 LRU 容量，0 表示不缓存
	ProfileCacheSize int `koanf:"profile_cache_size"`

	// Fallback 模型因冷启动 / 空画像 / 缺失物品失败时是否回退到热门推荐
	Fallback bool `koanf:"fallback"`

	// Pipeline 可选的 Pipeline 配置文件（YAML），设置后按配置的 Node 链推荐
	Pipeline string `koanf:"pipeline"`

	Hybrid recall.HybridConfig `koanf:"hybrid"`

	Store StoreConfig `koanf:"store"`

	Log LogConfig `koanf:"log"`
}

// StoreConfig 选择存储后端：memory 或 redis。
type StoreConfig struct {
	Backend string            `koanf:"backend"`
	Redis   store.RedisConfig `koanf:"redis"`

	// PopularityKey 热门榜单有序集合的 key
	PopularityKey string `koanf:"popularity_key"`

	// ExcludePrefix 用户排除列表的 key 前缀（{prefix}:{user_id}）
	ExcludePrefix string `koanf:"exclude_prefix"`
}

// LogConfig 是日志配置。
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json / console
}

// DefaultEngineConfig 返回默认配置。
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		TopN:             10,
		Strategy:         "auto",
		Rank:             23,
		MaxMatrixCells:   50_000_000,
		Workers:          8,
		ProfileCacheSize: 1024,
		Fallback:         true,
		Hybrid: recall.HybridConfig{
			WeightCB:   1.0,
			WeightCF:   1.0,
			CandidateK: 1000,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: store.RedisConfig{
				Addr:        "127.0.0.1:6379",
				DialTimeout: 5 * time.Second,
			},
			PopularityKey: "bookrec:popularity",
			ExcludePrefix: "bookrec:read",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// 带分节的环境变量：首个下划线之前是分节名。
var envSections = []string{"hybrid_", "store_redis_", "store_", "log_"}

// envTransformFunc 把环境变量名转换为 koanf 路径：
//   - BOOKREC_TOP_N -> top_n
//   - BOOKREC_HYBRID_WEIGHT_CB -> hybrid.weight_cb
//   - BOOKREC_STORE_REDIS_ADDR -> store.redis.addr
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, sec := range envSections {
		if rest, ok := strings.CutPrefix(key, sec); ok {
			return strings.ReplaceAll(sec, "_", ".") + rest
		}
	}
	return key
}

// LoadEngineConfig 按 默认值 -> 文件 -> 环境变量 的顺序加载并校验配置。path 为空时跳过文件。
func LoadEngineConfig(path string) (*EngineConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultEngineConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &EngineConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置，错误为 INVALID_INPUT。
func (c *EngineConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.NewInvalidInputError(core.ModuleService, fmt.Sprintf(format, args...))
	}
	if c.TopN <= 0 {
		return invalid("top_n must be positive, got %d", c.TopN)
	}
	if c.Rank <= 0 {
		return invalid("rank must be positive, got %d", c.Rank)
	}
	if c.Workers <= 0 {
		return invalid("workers must be positive, got %d", c.Workers)
	}
	if c.Hybrid.CandidateK <= 0 {
		return invalid("hybrid.candidate_k must be positive, got %d", c.Hybrid.CandidateK)
	}
	if c.MaxMatrixCells < 0 {
		return invalid("max_matrix_cells must not be negative, got %d", c.MaxMatrixCells)
	}
	if c.ProfileCacheSize < 0 {
		return invalid("profile_cache_size must not be negative, got %d", c.ProfileCacheSize)
	}
	if err := c.Hybrid.Validate(); err != nil {
		return err
	}
	if !slices.Contains(Strategies, c.Strategy) {
		return invalid("unknown strategy %q (supported: %v)", c.Strategy, Strategies)
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return invalid("store.redis.addr is required for the redis backend")
		}
	default:
		return invalid("unknown store backend %q (supported: memory, redis)", c.Store.Backend)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	return nil
}
