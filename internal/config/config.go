package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"venuehours/internal/hours"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Enabled   bool    `yaml:"enabled"`
		Port      int     `yaml:"port"`
		APIKey    string  `yaml:"api_key"`
		RateLimit float64 `yaml:"rate_limit"` // requests per second per client
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Engine struct {
		Timezone        string                `yaml:"timezone"`
		LookaheadDays   int                   `yaml:"lookahead_days"`
		DefaultSchedule *hours.WeeklySchedule `yaml:"default_schedule,omitempty"`
	} `yaml:"engine"`

	LocationsConfigPath        string `yaml:"locations_config_path"`
	LocationsReloadIntervalSec int    `yaml:"locations_reload_interval_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns how often backups run, daily when unset.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/venuehours.db"
	}
	if cfg.LocationsConfigPath == "" {
		cfg.LocationsConfigPath = DefaultLocationsPath
	}
	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	if cfg.Engine.DefaultSchedule != nil {
		if err = cfg.Engine.DefaultSchedule.Validate(); err != nil {
			return nil, fmt.Errorf("engine.default_schedule: %w", err)
		}
	}
	if _, err = cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves engine.timezone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Engine.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}

// EngineConfig builds the settings handed to hours.New.
func (c *Config) EngineConfig() (hours.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return hours.Config{}, err
	}

	ec := hours.DefaultConfig()
	ec.Location = loc
	if c.Engine.LookaheadDays > 0 {
		ec.LookaheadDays = c.Engine.LookaheadDays
	}
	if c.Engine.DefaultSchedule != nil {
		ec.DefaultSchedule = *c.Engine.DefaultSchedule
	}
	return ec, nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) LocationsReloadInterval() time.Duration {
	if c.LocationsReloadIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LocationsReloadIntervalSec) * time.Second
}
