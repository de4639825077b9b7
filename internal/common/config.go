// Package common provides shared utilities for PortfolioHub
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for PortfolioHub
type Config struct {
	Environment string        `toml:"environment"`
	UserID      string        `toml:"user_id"` // owner of the ledger and caches served by this instance
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Market      MarketConfig  `toml:"market"`
	Refresh     RefreshConfig `toml:"refresh"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"` // must cover a full POST /api/refresh
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetReadTimeout returns the request read timeout.
func (c ServerConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the response write timeout.
func (c ServerConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 5*time.Minute)
}

// StorageConfig selects and configures the durable document store.
type StorageConfig struct {
	Backend   string        `toml:"backend"` // memory, badger, surrealdb, redis
	Badger    BadgerConfig  `toml:"badger"`
	SurrealDB SurrealConfig `toml:"surrealdb"`
	Redis     RedisConfig   `toml:"redis"`
}

// BadgerConfig holds the embedded store location.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// SurrealConfig holds SurrealDB connection settings.
type SurrealConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	TwelveData TwelveDataConfig `toml:"twelvedata"`
	Polygon    PolygonConfig    `toml:"polygon"`
}

// TwelveDataConfig holds Twelve Data quote API configuration
type TwelveDataConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *TwelveDataConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// PolygonConfig holds Polygon.io configuration (dividends and news)
type PolygonConfig struct {
	APIKey        string `toml:"api_key"`
	RateLimit     int    `toml:"rate_limit"`
	DividendLimit int    `toml:"dividend_limit"`
}

// MarketConfig describes the trading venue used for quote staleness.
type MarketConfig struct {
	Timezone string `toml:"timezone"`
	Open     string `toml:"open"`  // HH:MM venue time, inclusive
	Close    string `toml:"close"` // HH:MM venue time, exclusive
}

// RefreshConfig controls the feed refresh workers.
type RefreshConfig struct {
	MaxConcurrency  int    `toml:"max_concurrency"`
	FetchTimeout    string `toml:"fetch_timeout"`
	Interval        string `toml:"interval"`
	NewsFetchLimit  int    `toml:"news_fetch_limit"`
	NewsMaxArticles int    `toml:"news_max_articles"`
	WarmCache       bool   `toml:"warm_cache"`
}

// GetFetchTimeout returns the per-request provider timeout.
func (c *RefreshConfig) GetFetchTimeout() time.Duration {
	return parseDuration(c.FetchTimeout, 15*time.Second)
}

// GetInterval returns the scheduler interval. Zero disables the scheduler.
func (c *RefreshConfig) GetInterval() time.Duration {
	if c.Interval == "" || c.Interval == "0" {
		return 0
	}
	return parseDuration(c.Interval, 30*time.Minute)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		UserID:      "default",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  "30s",
			WriteTimeout: "5m",
		},
		Storage: StorageConfig{
			Backend: "badger",
			Badger:  BadgerConfig{Path: "data/portfoliohub"},
			SurrealDB: SurrealConfig{
				Address:   "ws://localhost:8000/rpc",
				Username:  "root",
				Password:  "root",
				Namespace: "portfoliohub",
				Database:  "portfoliohub",
			},
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "portfoliohub",
			},
		},
		Clients: ClientsConfig{
			TwelveData: TwelveDataConfig{
				BaseURL:   "https://api.twelvedata.com",
				RateLimit: 8,
				Timeout:   "30s",
			},
			Polygon: PolygonConfig{
				RateLimit:     5,
				DividendLimit: 4,
			},
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Refresh: RefreshConfig{
			MaxConcurrency:  5,
			FetchTimeout:    "15s",
			Interval:        "30m",
			NewsFetchLimit:  4,
			NewsMaxArticles: 4,
			WarmCache:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if _, err := config.Market.Hours(); err != nil {
		return nil, fmt.Errorf("invalid market config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PORTFOLIOHUB_ENV"); env != "" {
		config.Environment = env
	}

	if user := os.Getenv("PORTFOLIOHUB_USER_ID"); user != "" {
		config.UserID = user
	}

	if host := os.Getenv("PORTFOLIOHUB_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PORTFOLIOHUB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PORTFOLIOHUB_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("PORTFOLIOHUB_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if path := os.Getenv("PORTFOLIOHUB_DATA_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if addr := os.Getenv("PORTFOLIOHUB_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.SurrealDB.Address = addr
	}

	if addr := os.Getenv("PORTFOLIOHUB_REDIS_ADDRESS"); addr != "" {
		config.Storage.Redis.Address = addr
	}

	if v := os.Getenv("PORTFOLIOHUB_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Refresh.MaxConcurrency = n
		}
	}

	if key := ResolveAPIKey("twelvedata_api_key", config.Clients.TwelveData.APIKey); key != "" {
		config.Clients.TwelveData.APIKey = key
	}
	if key := ResolveAPIKey("polygon_api_key", config.Clients.Polygon.APIKey); key != "" {
		config.Clients.Polygon.APIKey = key
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from the environment, falling back to the configured value.
func ResolveAPIKey(name string, fallback string) string {
	keyToEnvMapping := map[string][]string{
		"twelvedata_api_key": {"TWELVEDATA_API_KEY", "PORTFOLIOHUB_TWELVEDATA_API_KEY"},
		"polygon_api_key":    {"POLYGON_API_KEY", "PORTFOLIOHUB_POLYGON_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue
			}
		}
	}

	return fallback
}
