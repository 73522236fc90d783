package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backend names.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the game-ads service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Ads       AdsConfig       `yaml:"ads"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Env             string        `yaml:"env"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend for ads and counters.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// DataDir holds the JSON documents of the file backend.
	DataDir string `yaml:"data_dir"`
	// Timeout bounds every call to a remote backend.
	Timeout time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RateLimitConfig struct {
	Enabled    bool    `yaml:"enabled"`
	EventRPS   float64 `yaml:"event_rps"`
	EventBurst int     `yaml:"event_burst"`
	MgmtRPS    float64 `yaml:"mgmt_rps"`
	MgmtBurst  int     `yaml:"mgmt_burst"`
	PerIPRPS   float64 `yaml:"per_ip_rps"`
	PerIPBurst int     `yaml:"per_ip_burst"`
}

// CORSConfig controls the headers added to /api responses.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AdsConfig holds the fallbacks used when ad data is unusable.
type AdsConfig struct {
	FallbackBannerImage     string `yaml:"fallback_banner_image"`
	FallbackFullscreenImage string `yaml:"fallback_fullscreen_image"`
	FallbackTargetURL       string `yaml:"fallback_target_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			Env:             "development",
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendFile,
			DataDir: "data",
			Timeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "gameads",
			DBName:   "gameads",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 1,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ads",
		},
		SQLite: SQLiteConfig{
			Path: "data/ads.db",
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			EventRPS:   500,
			EventBurst: 100,
			MgmtRPS:    50,
			MgmtBurst:  20,
			PerIPRPS:   20,
			PerIPBurst: 40,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Ads: AdsConfig{
			FallbackBannerImage:     "https://via.placeholder.com/1080x140?text=Ad",
			FallbackFullscreenImage: "https://via.placeholder.com/1080x1920?text=Ad",
			FallbackTargetURL:       "https://alexlealdigital.github.io",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by GAMEADS_CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("GAMEADS_CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("GAMEADS_HTTP_ADDR", c.Server.Addr)
	if port := getEnv("PORT", ""); port != "" && os.Getenv("GAMEADS_HTTP_ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	c.Server.Env = getEnv("GAMEADS_ENV", c.Server.Env)
	c.Server.ShutdownTimeout = getDurationEnv("GAMEADS_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Store.Backend = strings.ToLower(getEnv("GAMEADS_STORE_BACKEND", c.Store.Backend))
	c.Store.DataDir = getEnv("GAMEADS_DATA_DIR", c.Store.DataDir)
	c.Store.Timeout = getDurationEnv("GAMEADS_STORE_TIMEOUT", c.Store.Timeout)

	c.Database.Host = getEnv("GAMEADS_DB_HOST", c.Database.Host)
	c.Database.Port = getIntEnv("GAMEADS_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("GAMEADS_DB_USER", c.Database.User)
	c.Database.Password = getEnv("GAMEADS_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("GAMEADS_DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("GAMEADS_DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = getIntEnv("GAMEADS_DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getIntEnv("GAMEADS_DB_MIN_CONNS", c.Database.MinConns)

	c.Redis.Addr = getEnv("GAMEADS_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("GAMEADS_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("GAMEADS_REDIS_DB", c.Redis.DB)
	c.Redis.KeyPrefix = getEnv("GAMEADS_REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.SQLite.Path = getEnv("GAMEADS_SQLITE_PATH", c.SQLite.Path)

	c.RateLimit.Enabled = getBoolEnv("GAMEADS_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.EventRPS = getFloatEnv("GAMEADS_RATE_LIMIT_EVENT_RPS", c.RateLimit.EventRPS)
	c.RateLimit.EventBurst = getIntEnv("GAMEADS_RATE_LIMIT_EVENT_BURST", c.RateLimit.EventBurst)
	c.RateLimit.MgmtRPS = getFloatEnv("GAMEADS_RATE_LIMIT_MGMT_RPS", c.RateLimit.MgmtRPS)
	c.RateLimit.MgmtBurst = getIntEnv("GAMEADS_RATE_LIMIT_MGMT_BURST", c.RateLimit.MgmtBurst)
	c.RateLimit.PerIPRPS = getFloatEnv("GAMEADS_RATE_LIMIT_PER_IP_RPS", c.RateLimit.PerIPRPS)
	c.RateLimit.PerIPBurst = getIntEnv("GAMEADS_RATE_LIMIT_PER_IP_BURST", c.RateLimit.PerIPBurst)

	c.CORS.AllowedOrigins = getSliceEnv("GAMEADS_CORS_ORIGINS", c.CORS.AllowedOrigins)
	c.CORS.MaxAge = getIntEnv("GAMEADS_CORS_MAX_AGE", c.CORS.MaxAge)

	c.Log.Level = getEnv("GAMEADS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("GAMEADS_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = getBoolEnv("GAMEADS_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("GAMEADS_METRICS_PATH", c.Metrics.Path)

	c.Ads.FallbackBannerImage = getEnv("GAMEADS_FALLBACK_BANNER_IMAGE", c.Ads.FallbackBannerImage)
	c.Ads.FallbackFullscreenImage = getEnv("GAMEADS_FALLBACK_FULLSCREEN_IMAGE", c.Ads.FallbackFullscreenImage)
	c.Ads.FallbackTargetURL = getEnv("GAMEADS_FALLBACK_TARGET_URL", c.Ads.FallbackTargetURL)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("GAMEADS_STORE_BACKEND: unknown backend %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("GAMEADS_STORE_TIMEOUT must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.EventRPS <= 0 || c.RateLimit.MgmtRPS <= 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("GAMEADS_METRICS_PATH must start with /")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
