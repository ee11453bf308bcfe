// Package config loads the gateway configuration from YAML with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Storage driver names accepted by StorageConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverS3       = "s3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig controls the HTTP listener. Timeouts are in seconds.
type ServerConfig struct {
	Host         string `yaml:"host" env:"ITEMGRID_SERVER_HOST"`
	Port         int    `yaml:"port" env:"ITEMGRID_SERVER_PORT"`
	ReadTimeout  int    `yaml:"read_timeout" env:"ITEMGRID_SERVER_READ_TIMEOUT"`
	WriteTimeout int    `yaml:"write_timeout" env:"ITEMGRID_SERVER_WRITE_TIMEOUT"`
}

// StorageConfig selects the item store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"ITEMGRID_STORAGE_DRIVER"`
}

// DatabaseConfig carries the SQL connection settings used when the
// postgres backend is selected. ConnMaxLifetime is in seconds.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"ITEMGRID_DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"ITEMGRID_DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"ITEMGRID_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"ITEMGRID_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"ITEMGRID_DATABASE_CONN_MAX_LIFETIME"`
}

// RedisConfig carries the connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ITEMGRID_REDIS_ADDR"`
	Password string `yaml:"password" env:"ITEMGRID_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"ITEMGRID_REDIS_DB"`
}

// S3Config carries the object storage settings for the s3 backend.
// Endpoint is optional and only needed for S3-compatible services.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ITEMGRID_S3_ENDPOINT"`
	Region    string `yaml:"region" env:"ITEMGRID_S3_REGION"`
	AccessKey string `yaml:"access_key" env:"ITEMGRID_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ITEMGRID_S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"ITEMGRID_S3_BUCKET"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"ITEMGRID_LOG_LEVEL"`
	Format     string `yaml:"format" env:"ITEMGRID_LOG_FORMAT"`
	Output     string `yaml:"output" env:"ITEMGRID_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"ITEMGRID_LOG_FILE_PREFIX"`
}

// AuthConfig enables JWT verification on the API. PublicKeyFile names a
// PEM-encoded RSA public key.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ITEMGRID_AUTH_ENABLED"`
	PublicKeyFile string `yaml:"public_key_file" env:"ITEMGRID_AUTH_PUBLIC_KEY_FILE"`
}

// RateLimitConfig controls per-caller request throttling.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"ITEMGRID_RATE_LIMIT_ENABLED"`
	RequestsPerSecond int  `yaml:"requests_per_second" env:"ITEMGRID_RATE_LIMIT_RPS"`
	Burst             int  `yaml:"burst" env:"ITEMGRID_RATE_LIMIT_BURST"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ITEMGRID_CORS_ALLOWED_ORIGINS"`
}

// AuditConfig controls persistence of the request audit trail. An empty
// LogFile keeps the trail in memory only.
type AuditConfig struct {
	LogFile string `yaml:"log_file" env:"ITEMGRID_AUDIT_LOG_FILE"`
}

// Load reads the gateway configuration from the path named by the
// ITEMGRID_CONFIG environment variable, falling back to
// config/itemgrid.yaml. A missing file at the fallback path is not an
// error; defaults plus environment overrides apply.
func Load() (*Config, error) {
	if path := os.Getenv("ITEMGRID_CONFIG"); path != "" {
		return LoadFromPath(path)
	}
	path := filepath.Join("config", "itemgrid.yaml")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return finalize(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the gateway configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finalize(cfg)
}

// LoadOrDefault loads the gateway config or returns defaults if loading fails.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in gateway configuration: an in-memory store
// behind a rate-limited listener on port 8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{Driver: DriverMemory},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func finalize(cfg *Config) (*Config, error) {
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("failed to decode environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present for the selected
// backends and that numeric settings are in range.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d is out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "", DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("storage %s: database dsn is required", c.Storage.Driver)
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("storage %s: redis addr is required", c.Storage.Driver)
		}
	case DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("storage %s: s3 bucket is required", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}

	if c.Auth.Enabled && c.Auth.PublicKeyFile == "" {
		return fmt.Errorf("auth: public_key_file is required when auth is enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit: requests_per_second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit: burst must be positive")
		}
	}

	return nil
}
