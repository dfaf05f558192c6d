package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	Environment string `mapstructure:"environment"`
	ServerPort  int    `mapstructure:"server_port"`
	LogLevel    string `mapstructure:"log_level"`

	APIBaseURL string        `mapstructure:"api_base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`

	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	RefreshTimeout   time.Duration `mapstructure:"refresh_timeout"`
	WatchdogSchedule string        `mapstructure:"watchdog_schedule"`

	StorageBackend string `mapstructure:"storage_backend"`
	StorageDir     string `mapstructure:"storage_dir"`
	StorageSecret  string `mapstructure:"storage_secret"`
	RedisURL       string `mapstructure:"redis_url"`
	RedisPrefix    string `mapstructure:"redis_prefix"`
	DatabaseURL    string `mapstructure:"database_url"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	LoginRateLimit     int      `mapstructure:"login_rate_limit"`

	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`

	MockAPIPort     int           `mapstructure:"mockapi_port"`
	MockAPITokenTTL time.Duration `mapstructure:"mockapi_token_ttl"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
}

// Load reads an optional .env file, then configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.CORSAllowedOrigins = splitCSV(cfg.CORSAllowedOrigins)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.StorageDir = expandHome(cfg.StorageDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can bind it on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server_port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("api_base_url", "http://localhost:8081")
	v.SetDefault("api_timeout", 15*time.Second)

	v.SetDefault("refresh_threshold", 60*time.Second)
	v.SetDefault("refresh_timeout", 10*time.Second)
	v.SetDefault("watchdog_schedule", "@every 30s")

	v.SetDefault("storage_backend", StorageFile)
	v.SetDefault("storage_dir", "~/.churchconsole")
	v.SetDefault("storage_secret", "")
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("redis_prefix", "churchconsole:")
	v.SetDefault("database_url", "")

	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("login_rate_limit", 10)

	v.SetDefault("otel_exporter_otlp_endpoint", "")

	v.SetDefault("mockapi_port", 8081)
	v.SetDefault("mockapi_token_ttl", 15*time.Minute)
	v.SetDefault("jwt_secret", "dev-secret-change-me")
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageFile, StorageRedis, StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	if c.RefreshThreshold <= 0 {
		return fmt.Errorf("REFRESH_THRESHOLD must be positive")
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	return nil
}

// splitCSV accepts both a list and a single comma separated entry
func splitCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
