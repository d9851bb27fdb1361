package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-continuum/pkg/retry"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DB wraps a bounded database/sql pool over one SQLite file.
type DB struct {
	*sql.DB
	path string
}

// Config holds database connection configuration.
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DSN builds the modernc.org/sqlite data source name for path.
// Pragmas are applied by the driver to every new pooled connection.
func DSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Open opens the SQLite file at cfg.Path, creating parent directories as
// needed. Callers normally go through OpenScoped, which also ensures the schema.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("database path must not be empty")
	}
	if err := ensureParentDir(cfg.Path); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(DriverName, DSN(cfg.Path, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)

	// First open of a fresh WAL file can race another process converting it
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// OpenScoped ensures the schema exists and then opens the pool.
func OpenScoped(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	if err := EnsureSchema(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return Open(ctx, cfg)
}

// Path returns the file the pool is bound to.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
