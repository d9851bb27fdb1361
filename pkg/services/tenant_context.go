package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-continuum/pkg/database"
)

// TenantContextFunc acquires a tenant-scoped database connection.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type TenantContextFunc func(ctx context.Context, tenantID string) (context.Context, func(), error)

// SharedContextFunc acquires a connection for the global archive tables.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type SharedContextFunc func(ctx context.Context) (context.Context, func(), error)

// NewTenantContextFunc creates a TenantContextFunc that uses the given database.
func NewTenantContextFunc(db *database.DB) TenantContextFunc {
	return database.NewTenantScopeProvider(db).WithTenantScope
}

// NewSharedContextFunc creates a SharedContextFunc that uses the given database.
func NewSharedContextFunc(db *database.DB) SharedContextFunc {
	return database.NewTenantScopeProvider(db).WithSharedScope
}
