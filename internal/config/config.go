package config

import (
	"fmt"
	"time"

	"github.com/dpup/prefab"
)

// ConfigKey is the prefab config section holding the survey sync settings
const ConfigKey = "survey_sync"

// Config represents the complete survey sync configuration
type Config struct {
	Sync    SyncConfig    `yaml:"sync" koanf:"sync"`
	Cache   CacheConfig   `yaml:"cache" koanf:"cache"`
	Surveys SurveysConfig `yaml:"surveys" koanf:"surveys"`
}

// SyncConfig controls how selections are resolved and played back
type SyncConfig struct {
	// Decimal places used when comparing coordinates for equality
	Precision int `yaml:"precision" koanf:"precision"`

	// Pause the player when playback reaches point B
	PauseAtBoundary bool `yaml:"pause_at_boundary" koanf:"pause_at_boundary"`

	// Advance to the next clip in the playlist when a clip ends
	ContinuousPlaylist bool `yaml:"continuous_playlist" koanf:"continuous_playlist"`
}

// CacheConfig holds trajectory cache settings
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl" koanf:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" koanf:"cleanup_interval"`
}

// SurveysConfig locates exported survey trajectories
type SurveysConfig struct {
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Precision:          5,
			PauseAtBoundary:    true,
			ContinuousPlaylist: true,
		},
		Cache: CacheConfig{
			TTL:             30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Surveys: SurveysConfig{
			DataDir: "./data/surveys",
		},
	}
}

// Load reads the survey_sync section from prefab.yaml and PF__ environment
// variables on top of the defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := prefab.Config.Unmarshal(ConfigKey, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s section: %w", ConfigKey, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.Sync.Precision < 0 || c.Sync.Precision > 10 {
		return fmt.Errorf("sync.precision must be between 0 and 10, got %d", c.Sync.Precision)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("cache.cleanup_interval must be positive, got %s", c.Cache.CleanupInterval)
	}
	return nil
}
