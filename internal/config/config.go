package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	Token              string        `mapstructure:"dataddo_token"`
	BaseURL            string        `mapstructure:"dataddo_base_url"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	QueriesFile         string        `mapstructure:"queries_file"`
	PublishersFile      string        `mapstructure:"publishers_file"`
	PullIntervalSeconds int64         `mapstructure:"pull_interval"`
	PullInterval        time.Duration `mapstructure:"-"`
	PullCron            string        `mapstructure:"pull_cron"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from configs/.env, environment variables and defaults.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return LoadFrom(viper.New())
}

// LoadFrom unmarshals configuration from v after applying defaults and env
// binding. Callers may bind flags on v beforehand.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.PullCron = strings.TrimSpace(cfg.PullCron)

	if cfg.PullCron != "" {
		if _, err := cron.ParseStandard(cfg.PullCron); err != nil {
			return nil, fmt.Errorf("invalid pull_cron %q: %w", cfg.PullCron, err)
		}
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.PullIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid pull_interval (must be positive seconds)")
	}
	cfg.PullInterval = time.Duration(cfg.PullIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "dataddo-puller")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("dataddo_token", "")
	v.SetDefault("dataddo_base_url", "https://api.dataddo.com/v1.0")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("queries_file", "./configs/queries.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("pull_interval", 900) // seconds
	v.SetDefault("pull_cron", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/snapshots.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("metrics_addr", "")
}

// LogFields returns the config as a loggable map with the token masked.
func (c *Config) LogFields() map[string]any {
	token := ""
	if n := len(c.Token); n > 4 {
		token = strings.Repeat("*", n-4) + c.Token[n-4:]
	} else if n > 0 {
		token = strings.Repeat("*", n)
	}
	return map[string]any{
		"app_name":         c.AppName,
		"app_env":          c.Env,
		"log_level":        c.LogLevel,
		"dataddo_token":    token,
		"dataddo_base_url": c.BaseURL,
		"http_timeout":     c.HTTPTimeout.String(),
		"queries_file":     c.QueriesFile,
		"publishers_file":  c.PublishersFile,
		"pull_interval":    c.PullInterval.String(),
		"pull_cron":        c.PullCron,
		"storage_type":     c.StorageType,
		"bbolt_path":       c.BBoltPath,
		"storage_ttl":      c.StorageTTL.String(),
		"metrics_addr":     c.MetricsAddr,
	}
}
