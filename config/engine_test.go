package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/bookrec/core"
)

func TestLoadEngineConfig_Defaults(t *testing.T) {
	cfg, err := LoadEngineConfig("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, "auto", cfg.Strategy)
	assert.Equal(t, 23, cfg.Rank)
	assert.Equal(t, 50_000_000, cfg.MaxMatrixCells)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 1024, cfg.ProfileCacheSize)
	assert.True(t, cfg.Fallback)
	assert.Equal(t, 1.0, cfg.Hybrid.WeightCB)
	assert.Equal(t, 1.0, cfg.Hybrid.WeightCF)
	assert.Equal(t, 1000, cfg.Hybrid.CandidateK)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Redis.DialTimeout)
}

func TestLoadEngineConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
top_n: 5
rank: 12
hybrid:
  weight_cb: 0.3
  normalize: true
store:
  backend: redis
  redis:
    addr: redis:6379
    dial_timeout: 2s
`), 0o600))

	t.Setenv("BOOKREC_RANK", "40")
	t.Setenv("BOOKREC_HYBRID_WEIGHT_CF", "0.7")
	t.Setenv("BOOKREC_STORE_REDIS_DB", "3")
	t.Setenv("BOOKREC_LOG_LEVEL", "debug")

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.TopN, "file overrides default")
	assert.Equal(t, 40, cfg.Rank, "env overrides file")
	assert.Equal(t, 0.3, cfg.Hybrid.WeightCB)
	assert.Equal(t, 0.7, cfg.Hybrid.WeightCF)
	assert.True(t, cfg.Hybrid.Normalize)
	assert.Equal(t, 1000, cfg.Hybrid.CandidateK, "untouched default survives")
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, 2*time.Second, cfg.Store.Redis.DialTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEngineConfig_MissingFile(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEngineConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *EngineConfig)
	}{
		{"zero top_n", func(c *EngineConfig) { c.TopN = 0 }},
		{"zero rank", func(c *EngineConfig) { c.Rank = 0 }},
		{"zero workers", func(c *EngineConfig) { c.Workers = 0 }},
		{"zero candidate_k", func(c *EngineConfig) { c.Hybrid.CandidateK = 0 }},
		{"negative max cells", func(c *EngineConfig) { c.MaxMatrixCells = -1 }},
		{"negative cache", func(c *EngineConfig) { c.ProfileCacheSize = -1 }},
		{"negative weight", func(c *EngineConfig) { c.Hybrid.WeightCF = -0.5 }},
		{"unknown strategy", func(c *EngineConfig) { c.Strategy = "random" }},
		{"unknown backend", func(c *EngineConfig) { c.Store.Backend = "etcd" }},
		{"redis without addr", func(c *EngineConfig) { c.Store = StoreConfig{Backend: "redis"} }},
		{"bad log level", func(c *EngineConfig) { c.Log.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, core.IsInvalidInput(err), "got %v", err)
		})
	}

	assert.NoError(t, DefaultEngineConfig().Validate())
}

func TestEnvTransformFunc(t *testing.T) {
	cases := map[string]string{
		"BOOKREC_TOP_N":                "top_n",
		"BOOKREC_MAX_MATRIX_CELLS":     "max_matrix_cells",
		"BOOKREC_HYBRID_WEIGHT_CB":     "hybrid.weight_cb",
		"BOOKREC_STORE_BACKEND":        "store.backend",
		"BOOKREC_STORE_REDIS_ADDR":     "store.redis.addr",
		"BOOKREC_STORE_EXCLUDE_PREFIX": "store.exclude_prefix",
		"BOOKREC_LOG_FORMAT":           "log.format",
	}
	for in, want := range cases {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}
