package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Path:         filepath.Join(t.TempDir(), "nested", "dir", "continuum.db"),
		BusyTimeout:  2 * time.Second,
		MaxOpenConns: 2,
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN("/data/continuum.db", 1500*time.Millisecond)
	assert.Equal(t, "/data/continuum.db?_pragma=busy_timeout(1500)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dsn)

	assert.Contains(t, DSN("x.db", 0), "busy_timeout(5000)")
}

func TestOpenScoped_CreatesParentDirsAndSchema(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	db, err := OpenScoped(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, cfg.Path)
	assert.Equal(t, cfg.Path, db.Path())

	tables := []string{
		"continuum_meta", "spatial_4d", "document_blobs", "semantic_chunks", "unique_kernels",
		"compression_runs", "research_suggestions", "library_documents", "astral_body_catalog",
		"astral_observer_sites", "nasa_file_registry", "ephemeris_samples", "occlusion_events",
		"ingestion_jobs",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	var journal string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	require.NoError(t, EnsureSchema(ctx, cfg, zap.NewNop()))
	require.NoError(t, EnsureSchema(ctx, cfg, zap.NewNop()))

	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	var version int
	var dirty bool
	require.NoError(t, db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty))
	assert.Equal(t, 3, version)
	assert.False(t, dirty)
}

func TestEnsureSchema_ToleratesPreexistingTables(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	// A database created by other tooling, without migration bookkeeping
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE continuum_meta (key TEXT PRIMARY KEY, value TEXT, updated_at TEXT NOT NULL DEFAULT (datetime('now')))`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO continuum_meta (key, value) VALUES ('etl_last_source', '/data')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, EnsureSchema(ctx, cfg, zap.NewNop()))

	db, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	var value string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT value FROM continuum_meta WHERE key = 'etl_last_source'").Scan(&value))
	assert.Equal(t, "/data", value)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), &Config{Path: "  "})
	require.Error(t, err)
}

func TestNormalizeTenant(t *testing.T) {
	assert.Equal(t, "default", NormalizeTenant(""))
	assert.Equal(t, "default", NormalizeTenant("   "))
	assert.Equal(t, "acme", NormalizeTenant(" acme "))
}

func TestTenantScopeProvider(t *testing.T) {
	ctx := context.Background()
	db, err := OpenScoped(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, ok := GetTenantScope(ctx)
	assert.False(t, ok, "bare context has no scope")

	provider := NewTenantScopeProvider(db)
	tenantCtx, cleanup, err := provider.WithTenantScope(ctx, "  ")
	require.NoError(t, err)

	scope, ok := GetTenantScope(tenantCtx)
	require.True(t, ok)
	assert.Equal(t, DefaultTenant, scope.TenantID)

	var one int
	require.NoError(t, scope.Conn.QueryRowContext(tenantCtx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	cleanup()
	_, ok = GetTenantScope(tenantCtx)
	assert.False(t, ok, "closed scope must not be handed out")

	sharedCtx, cleanupShared, err := provider.WithSharedScope(ctx)
	require.NoError(t, err)
	defer cleanupShared()
	shared, ok := GetTenantScope(sharedCtx)
	require.True(t, ok)
	assert.Empty(t, shared.TenantID)
}
