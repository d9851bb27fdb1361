// Package testhelpers provides utilities for testing ekaya-continuum components.
package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/database"
)

// TestDB holds a migrated SQLite database that lives in a per-test temp directory.
type TestDB struct {
	DB   *database.DB
	Path string
}

// NewTestDB opens a fresh database with all migrations applied.
// Each TenantContext holds a pooled connection until the test ends, so the
// pool is sized for a handful of concurrent scopes.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "continuum.db")
	db, err := database.OpenScoped(context.Background(), &database.Config{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 16,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{DB: db, Path: path}
}

// TenantContext returns a context carrying a scope bound to tenantID.
// The scope is released when the test finishes.
func (tdb *TestDB) TenantContext(t *testing.T, tenantID string) context.Context {
	t.Helper()

	scope, err := tdb.DB.WithTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("failed to create tenant scope: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetTenantScope(context.Background(), scope)
}

// SharedContext returns a context whose scope addresses the global archive tables.
func (tdb *TestDB) SharedContext(t *testing.T) context.Context {
	t.Helper()

	scope, err := tdb.DB.WithoutTenant(context.Background())
	if err != nil {
		t.Fatalf("failed to create shared scope: %v", err)
	}
	t.Cleanup(scope.Close)
	return database.SetTenantScope(context.Background(), scope)
}

// WriteFile writes content to name inside a temp directory and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
