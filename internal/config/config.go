package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxUploadMB caps multipart uploads.
	MaxUploadMB int `yaml:"max_upload_mb" validate:"min=1"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if c.Host == "" {
		return "localhost"
	}
	return c.Host
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"min=0"`
}

// RedisConfig holds the session store and lock settings. An empty URL keeps
// sessions in process.
type RedisConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

// IngestConfig holds import pipeline settings
type IngestConfig struct {
	SessionTTLHours int `yaml:"session_ttl_hours" validate:"min=1"`
	LockTTLMinutes  int `yaml:"lock_ttl_minutes" validate:"min=1"`
	MaxRows         int `yaml:"max_rows" validate:"min=1,max=50000"`
}

func (c IngestConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c IngestConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// InboxConfig holds the S3 drop-folder settings
type InboxConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AWSProfile      string `yaml:"aws_profile"`
	IntervalMinutes int    `yaml:"interval_minutes" validate:"min=1"`
}

func (c InboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// TaxonomyConfig points at an optional reference data file that replaces
// the embedded one.
type TaxonomyConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Redact bool   `yaml:"redact"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Ingest.SessionTTLHours == 0 {
		cfg.Ingest.SessionTTLHours = 24
	}
	if cfg.Ingest.LockTTLMinutes == 0 {
		cfg.Ingest.LockTTLMinutes = 10
	}
	if cfg.Ingest.MaxRows == 0 {
		cfg.Ingest.MaxRows = 50000
	}
	if cfg.Inbox.Prefix == "" {
		cfg.Inbox.Prefix = "inbox/"
	}
	if cfg.Inbox.Region == "" {
		cfg.Inbox.Region = "me-central-1"
	}
	if cfg.Inbox.IntervalMinutes == 0 {
		cfg.Inbox.IntervalMinutes = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks field constraints after defaults are applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
// An empty path starts from Default.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	// Inbox overrides
	if v := os.Getenv("INBOX_S3_BUCKET"); v != "" {
		cfg.Inbox.Bucket = v
		cfg.Inbox.Enabled = true
	}
	if v := os.Getenv("INBOX_S3_REGION"); v != "" {
		cfg.Inbox.Region = v
	}
	if v := os.Getenv("TAXONOMY_PATH"); v != "" {
		cfg.Taxonomy.Path = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
