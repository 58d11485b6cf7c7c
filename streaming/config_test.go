package streaming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/raido/spatial"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 2, cfg.LoadBudget)
	require.Equal(t, 4, cfg.UnloadBudget)
	require.Equal(t, 5, cfg.GenerationBudget)
	require.Equal(t, 1.2, cfg.UnloadHysteresis)
	require.Equal(t, uint32(60), cfg.CleanupInterval)

	require.Equal(t, 100, cfg.MaxLoaded.Level(spatial.LODMacro))
	require.Equal(t, 500, cfg.MaxLoaded.Level(spatial.LODRegion))
	require.Equal(t, 1000, cfg.MaxLoaded.Level(spatial.LODLocal))
	require.Equal(t, 2000, cfg.MaxLoaded.Level(spatial.LODDetail))
	require.Equal(t, 3000, cfg.MaxLoaded.Level(spatial.LODMicro))

	require.Equal(t, 2048, cfg.Cache.Capacity)
	require.Equal(t, uint32(5), cfg.Cache.TTLFrames)
	require.Equal(t, float32(0.01), cfg.Cache.PositionTolerance)
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
load_budget = 3
disable_cache_cleanup = true

[max_loaded]
micro = 10

[cache]
ttl_frames = 8
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 3, cfg.LoadBudget)
		require.True(t, cfg.DisableCacheCleanup)
		require.Equal(t, 10, cfg.MaxLoaded.Micro)
		require.Equal(t, uint32(8), cfg.Cache.TTLFrames)

		require.Equal(t, 4, cfg.UnloadBudget)
		require.Equal(t, 100, cfg.MaxLoaded.Macro)
		require.Equal(t, 2048, cfg.Cache.Capacity)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "load_budget = ["))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "unload_hysteresis = 0.5"))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{
			name:   "load budget",
			modify: func(c *Config) { c.LoadBudget = 0 },
		},
		{
			name:   "unload budget",
			modify: func(c *Config) { c.UnloadBudget = -1 },
		},
		{
			name:   "generation budget",
			modify: func(c *Config) { c.GenerationBudget = 0 },
		},
		{
			name:   "cache capacity",
			modify: func(c *Config) { c.Cache.Capacity = 0 },
		},
		{
			name:   "cache ttl",
			modify: func(c *Config) { c.Cache.TTLFrames = 0 },
		},
		{
			name:   "cache tolerance",
			modify: func(c *Config) { c.Cache.PositionTolerance = 0 },
		},
		{
			name:   "max loaded",
			modify: func(c *Config) { c.MaxLoaded.Detail = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "streaming.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}
