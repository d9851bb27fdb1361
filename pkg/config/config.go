package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-continuum.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (single SQLite file)
	Database DatabaseConfig `yaml:"database"`

	Tenant TenantConfig `yaml:"tenant"`

	// Ingestion pipeline defaults
	Ingestion IngestionConfig `yaml:"ingestion"`

	Explorer ExplorerConfig `yaml:"explorer"`

	MCP MCPConfig `yaml:"mcp"`
}

// DatabaseConfig holds SQLite connection configuration.
type DatabaseConfig struct {
	Path          string `yaml:"path" env:"CONTINUUM_DB_PATH" env-default:"./continuum.db"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" env:"CONTINUUM_DB_BUSY_TIMEOUT_MS" env-default:"5000"`
	// MaxOpenConns bounds the pool that backs per-call tenant scopes.
	MaxOpenConns int `yaml:"max_open_conns" env:"CONTINUUM_DB_MAX_OPEN_CONNS" env-default:"4"`
}

// TenantConfig holds the tenant used when a caller does not name one.
type TenantConfig struct {
	Default string `yaml:"default" env:"CONTINUUM_TENANT" env-default:"default"`
}

// IngestionConfig holds defaults for ingestion runs.
type IngestionConfig struct {
	DefaultBodyID     string `yaml:"default_body_id" env:"CONTINUUM_DEFAULT_BODY_ID" env-default:"earth"`
	FrameID           string `yaml:"frame_id" env:"CONTINUUM_FRAME_ID" env-default:"J2000"`
	ChecksumBlockSize int    `yaml:"checksum_block_size" env:"CONTINUUM_CHECKSUM_BLOCK_SIZE" env-default:"65536"`
}

// ExplorerConfig holds limits for ad hoc read queries.
type ExplorerConfig struct {
	MaxRows int `yaml:"max_rows" env:"CONTINUUM_EXPLORER_MAX_ROWS" env-default:"1000"`
}

// MCPConfig holds MCP server settings.
// An empty HTTPAddr serves MCP over stdio.
type MCPConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"CONTINUUM_MCP_HTTP_ADDR" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: defaults and environment variables apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Tenant.Default = strings.TrimSpace(cfg.Tenant.Default)
	if cfg.Tenant.Default == "" {
		cfg.Tenant.Default = "default"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects values that would make the store or pipeline unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Ingestion.ChecksumBlockSize <= 0 {
		return fmt.Errorf("ingestion.checksum_block_size must be positive, got %d", c.Ingestion.ChecksumBlockSize)
	}
	if c.Explorer.MaxRows <= 0 {
		return fmt.Errorf("explorer.max_rows must be positive, got %d", c.Explorer.MaxRows)
	}
	return nil
}
