package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DefaultTenant is used whenever a caller supplies a blank tenant id.
const DefaultTenant = "default"

// NormalizeTenant trims tenantID and substitutes DefaultTenant when blank.
func NormalizeTenant(tenantID string) string {
	t := strings.TrimSpace(tenantID)
	if t == "" {
		return DefaultTenant
	}
	return t
}

// TenantScope is one pooled connection bound to a tenant.
// Repositories filter every tenant-scoped statement by TenantID.
type TenantScope struct {
	Conn     *sql.Conn
	TenantID string
}

// Close releases the connection to the pool.
// This MUST be called; an unreleased scope holds one of the bounded pool slots.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	_ = s.Conn.Close()
	s.Conn = nil
}

// WithTenant acquires a connection and binds it to the normalized tenant.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, tenantID string) (*TenantScope, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &TenantScope{Conn: conn, TenantID: NormalizeTenant(tenantID)}, nil
}

// WithoutTenant acquires a connection for the shared archive tables
// (continuum_meta, document_blobs, ...), which carry no tenant column.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &TenantScope{Conn: conn}, nil
}
