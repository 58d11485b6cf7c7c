package streaming

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/raido/distcache"
	"github.com/aukilabs/raido/spatial"
)

const (
	ErrTypeInvalidConfig = "invalid_streaming_config"
)

// Config holds the streaming budgets and limits. It can be loaded from a TOML
// file where missing values keep their defaults.
type Config struct {
	LoadBudget       int     `toml:"load_budget"`
	UnloadBudget     int     `toml:"unload_budget"`
	GenerationBudget int     `toml:"generation_budget"`
	UnloadHysteresis float64 `toml:"unload_hysteresis"`
	IdleUnloadFrames uint32  `toml:"idle_unload_frames"`
	CleanupInterval  uint32  `toml:"cleanup_interval"`

	MaxLoaded MaxLoadedConfig `toml:"max_loaded"`
	Cache     CacheConfig     `toml:"cache"`

	DisableDistanceCache bool `toml:"disable_distance_cache"`
	DisableCacheCleanup  bool `toml:"disable_cache_cleanup"`
}

// MaxLoadedConfig is the number of loaded chunks per level above which idle
// chunks are unloaded.
type MaxLoadedConfig struct {
	Macro  int `toml:"macro"`
	Region int `toml:"region"`
	Local  int `toml:"local"`
	Detail int `toml:"detail"`
	Micro  int `toml:"micro"`
}

// Level returns the limit of the given level.
func (c MaxLoadedConfig) Level(l spatial.LODLevel) int {
	switch l {
	case spatial.LODMacro:
		return c.Macro
	case spatial.LODRegion:
		return c.Region
	case spatial.LODLocal:
		return c.Local
	case spatial.LODDetail:
		return c.Detail
	default:
		return c.Micro
	}
}

type CacheConfig struct {
	Capacity          int     `toml:"capacity"`
	TTLFrames         uint32  `toml:"ttl_frames"`
	PositionTolerance float32 `toml:"position_tolerance"`
}

// Options returns the distance cache options matching the config.
func (c CacheConfig) Options() []distcache.Option {
	return []distcache.Option{
		distcache.WithCapacity(c.Capacity),
		distcache.WithTTL(c.TTLFrames),
		distcache.WithPositionTolerance(c.PositionTolerance),
	}
}

func DefaultConfig() Config {
	return Config{
		LoadBudget:       2,
		UnloadBudget:     4,
		GenerationBudget: 5,
		UnloadHysteresis: 1.2,
		IdleUnloadFrames: 1800,
		CleanupInterval:  60,
		MaxLoaded: MaxLoadedConfig{
			Macro:  100,
			Region: 500,
			Local:  1000,
			Detail: 2000,
			Micro:  3000,
		},
		Cache: CacheConfig{
			Capacity:          distcache.DefaultCapacity,
			TTLFrames:         distcache.DefaultTTLFrames,
			PositionTolerance: distcache.DefaultPositionTolerance,
		},
	}
}

// LoadConfig reads a TOML file on top of the default config. An empty path
// returns the default config.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New("reading streaming config failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.New("parsing streaming config failed").
			WithType(ErrTypeInvalidConfig).
			WithTag("path", path).
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.LoadBudget <= 0:
		return invalidConfig("load_budget", c.LoadBudget)

	case c.UnloadBudget <= 0:
		return invalidConfig("unload_budget", c.UnloadBudget)

	case c.GenerationBudget <= 0:
		return invalidConfig("generation_budget", c.GenerationBudget)

	case !(c.UnloadHysteresis >= 1):
		return invalidConfig("unload_hysteresis", c.UnloadHysteresis)

	case c.Cache.Capacity <= 0:
		return invalidConfig("cache.capacity", c.Cache.Capacity)

	case c.Cache.TTLFrames == 0:
		return invalidConfig("cache.ttl_frames", c.Cache.TTLFrames)

	case !(c.Cache.PositionTolerance > 0):
		return invalidConfig("cache.position_tolerance", c.Cache.PositionTolerance)
	}

	for _, l := range spatial.Levels {
		if c.MaxLoaded.Level(l) <= 0 {
			return invalidConfig("max_loaded."+l.String(), c.MaxLoaded.Level(l))
		}
	}
	return nil
}

func invalidConfig(field string, value any) error {
	return errors.New("invalid streaming config").
		WithType(ErrTypeInvalidConfig).
		WithTag("field", field).
		WithTag("value", value)
}
