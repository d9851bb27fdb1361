package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MetaRepository is the global key/value store in continuum_meta.
type MetaRepository interface {
	// Get returns the stored value, or nil when the key is unset.
	Get(ctx context.Context, key string) (*string, error)
	// Set writes value, replacing any existing entry for key.
	Set(ctx context.Context, key, value string) error
}

type metaRepository struct{}

// NewMetaRepository creates a new MetaRepository.
func NewMetaRepository() MetaRepository {
	return &metaRepository{}
}

var _ MetaRepository = (*metaRepository)(nil)

func (r *metaRepository) Get(ctx context.Context, key string) (*string, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	var value *string
	err = scope.Conn.QueryRowContext(ctx, `SELECT value FROM continuum_meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meta key %q: %w", key, err)
	}
	return value, nil
}

func (r *metaRepository) Set(ctx context.Context, key, value string) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	_, err = scope.Conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO continuum_meta (key, value, updated_at) VALUES (?, ?, datetime('now'))`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta key %q: %w", key, err)
	}
	return nil
}
