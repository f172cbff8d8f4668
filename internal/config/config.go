// Package config handles configuration loading for the Zenzoro gateway.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zenzoro/zenzoro/internal/symbols"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Assets   []AssetConfig  `mapstructure:"assets"   yaml:"assets"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	Watch    WatchConfig    `mapstructure:"watch"    yaml:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	ServeUI     bool     `mapstructure:"serve_ui"     yaml:"serve_ui"`
}

// UpstreamConfig holds CoinGecko client settings.
type UpstreamConfig struct {
	BaseURL         string `mapstructure:"base_url"            yaml:"base_url"`
	APIKey          string `mapstructure:"api_key"             yaml:"api_key"`
	TimeoutSec      int    `mapstructure:"timeout_sec"         yaml:"timeout_sec"`
	Retry           bool   `mapstructure:"retry"               yaml:"retry"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"  yaml:"rate_limit_per_min"`
}

// Timeout returns the per-call upstream timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSec) * time.Second
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"` // "memory", "redis", or "off"
	TTLSec  int         `mapstructure:"ttl_sec" yaml:"ttl_sec"`
	Redis   RedisConfig `mapstructure:"redis"   yaml:"redis"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// RedisConfig holds Redis connection settings for the shared cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
}

// AssetConfig declares one supported asset beyond the built-in table.
type AssetConfig struct {
	ID      string   `mapstructure:"id"      yaml:"id"`
	Symbol  string   `mapstructure:"symbol"  yaml:"symbol"`
	Name    string   `mapstructure:"name"    yaml:"name"`
	Aliases []string `mapstructure:"aliases" yaml:"aliases"`
}

// NewsConfig holds RSS headline settings.
type NewsConfig struct {
	Feeds []FeedConfig `mapstructure:"feeds" yaml:"feeds"`
	Limit int          `mapstructure:"limit" yaml:"limit"`
}

// FeedConfig is one RSS source.
type FeedConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url"  yaml:"url"`
}

// WatchConfig drives the WebSocket price ticker.
type WatchConfig struct {
	Symbols     []string `mapstructure:"symbols"      yaml:"symbols"`
	IntervalSec int      `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// Interval returns the tick period.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSec) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.zenzoro/config.yaml (home directory)
//  3. /etc/zenzoro/config.yaml (system)
//
// Environment variables override config file values.
// Format: ZENZORO_<SECTION>_<KEY>, e.g., ZENZORO_UPSTREAM_API_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".zenzoro"))
	v.AddConfigPath("/etc/zenzoro")

	v.SetEnvPrefix("ZENZORO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults plus env vars are a working setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("ZENZORO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// SymbolTable builds the alias table: the built-in assets extended (or
// overridden) by configured ones.
func (c *Config) SymbolTable() *symbols.Table {
	assets := append([]symbols.Asset{}, symbols.DefaultAssets...)
	for _, a := range c.Assets {
		assets = append(assets, symbols.Asset{
			ID:      a.ID,
			Symbol:  a.Symbol,
			Name:    a.Name,
			Aliases: a.Aliases,
		})
	}
	return symbols.NewTable(assets)
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.serve_ui", true)

	v.SetDefault("upstream.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("upstream.timeout_sec", 8)
	v.SetDefault("upstream.retry", false)
	v.SetDefault("upstream.rate_limit_per_min", 30)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_sec", 30)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("news.limit", 20)

	v.SetDefault("watch.symbols", []string{"btc", "eth", "sol"})
	v.SetDefault("watch.interval_sec", 15)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("ZENZORO_UPSTREAM_API_KEY"); key != "" {
		cfg.Upstream.APIKey = key
	}
	if pw := os.Getenv("ZENZORO_CACHE_REDIS_PASSWORD"); pw != "" {
		cfg.Cache.Redis.Password = pw
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
