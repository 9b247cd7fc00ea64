package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"finquest/adapters/redis"
	"finquest/adapters/sqlx"
	"finquest/core"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"FINQUEST_ENV"`
	Profile     string      `json:"profile" env:"FINQUEST_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Rules engine configuration
	Engine EngineConfig `json:"engine"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Realtime notice streaming
	Realtime RealtimeConfig `json:"realtime"`

	// Outbound notice webhooks
	Webhooks WebhookConfig `json:"webhooks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"FINQUEST_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"FINQUEST_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"FINQUEST_SERVER_CORS_ORIGIN"`
	MaxBodyBytes      int64         `json:"max_body_bytes" env:"FINQUEST_SERVER_MAX_BODY_BYTES"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"FINQUEST_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"FINQUEST_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"FINQUEST_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"FINQUEST_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"FINQUEST_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"FINQUEST_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"FINQUEST_STORAGE_FILE_PATH"`
}

// EngineConfig configures how events are scored.
type EngineConfig struct {
	// Timezone is the IANA zone in which streak days are counted.
	Timezone string           `json:"timezone" env:"FINQUEST_ENGINE_TIMEZONE"`
	Dispatch string           `json:"dispatch" env:"FINQUEST_ENGINE_DISPATCH"`
	Rewards  core.RewardTable `json:"rewards"`
}

// Location resolves Timezone.
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"FINQUEST_LOG_LEVEL"`
	Format     string            `json:"format" env:"FINQUEST_LOG_FORMAT"`
	Output     string            `json:"output" env:"FINQUEST_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"FINQUEST_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"FINQUEST_METRICS_ENABLED"`
	Address string `json:"address" env:"FINQUEST_METRICS_ADDR"`
	Path    string `json:"path" env:"FINQUEST_METRICS_PATH"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"FINQUEST_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"FINQUEST_SECURITY_API_KEYS"`
	// JWTSecret switches identity from the X-User-ID header to HS256 bearer tokens.
	JWTSecret string `json:"jwt_secret,omitempty" env:"FINQUEST_SECURITY_JWT_SECRET"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"FINQUEST_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"FINQUEST_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"FINQUEST_SECURITY_RATE_LIMIT_CLEANUP"`
}

// RealtimeConfig controls the WebSocket notice stream.
type RealtimeConfig struct {
	Enabled    bool `json:"enabled" env:"FINQUEST_REALTIME_ENABLED"`
	BufferSize int  `json:"buffer_size" env:"FINQUEST_REALTIME_BUFFER"`
}

// WebhookConfig lists endpoints that receive notices.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"FINQUEST_WEBHOOK_ENDPOINTS"`
	Secret    string        `json:"secret,omitempty" env:"FINQUEST_WEBHOOK_SECRET"`
	Types     []string      `json:"types,omitempty" env:"FINQUEST_WEBHOOK_TYPES"`
	Timeout   time.Duration `json:"timeout" env:"FINQUEST_WEBHOOK_TIMEOUT"`
}

// Load loads configuration from .env, environment variables and secrets, and validates it
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	return finish(cfg)
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	// Environment variables override file values
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := ApplySecrets(context.Background(), cfg, NewEnvironmentSecretStore()); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads FINQUEST_ENV_FILE, or ./.env, into the process environment.
// Variables already set win. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv("FINQUEST_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			MaxBodyBytes:      64 << 10,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/finquest.json",
			},
		},
		Engine: EngineConfig{
			Timezone: "UTC",
			Dispatch: "async",
			Rewards:  core.DefaultRewards(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Realtime: RealtimeConfig{
			Enabled:    true,
			BufferSize: 64,
		},
		Webhooks: WebhookConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	// Validate server config
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	// Validate storage config
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("engine config: %v", err))
	}

	// Validate logging config
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	// Validate metrics config
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	// Validate security config
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Realtime.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("realtime config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Security.JWTSecret != "" {
		cfg.Security.JWTSecret = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
