package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-continuum/pkg/database"
)

// Default list limits per entity.
const (
	DefaultAstralBodyLimit   = 500
	DefaultObserverSiteLimit = 200
	DefaultNasaFileLimit     = 200
	DefaultOcclusionLimit    = 200
	DefaultIngestionJobLimit = 100
	DefaultLibraryLimit      = 100
	DefaultNearEpochLimit    = 10
	DefaultArchiveListLimit  = 100
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tenantScope returns the scope stored in ctx or ErrNoTenantScope.
func tenantScope(ctx context.Context) (*database.TenantScope, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, apperrors.ErrNoTenantScope
	}
	return scope, nil
}

func limitOrDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// whereClause accumulates AND-joined conditions with positional args.
type whereClause struct {
	conditions []string
	args       []any
}

func (w *whereClause) add(condition string, args ...any) {
	w.conditions = append(w.conditions, condition)
	w.args = append(w.args, args...)
}

func (w *whereClause) addIf(value, condition string) {
	if value != "" {
		w.add(condition, value)
	}
}

func (w *whereClause) String() string {
	return strings.Join(w.conditions, " AND ")
}

// queryAll runs query and materializes each row with scan.
func queryAll[T any](ctx context.Context, conn *sql.Conn, scan func(rowScanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// queryOne returns (nil, nil) when the query matches no row.
func queryOne[T any](ctx context.Context, conn *sql.Conn, scan func(rowScanner) (*T, error), query string, args ...any) (*T, error) {
	item, err := scan(conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// insert executes an INSERT and returns the new rowid.
func insert(ctx context.Context, conn *sql.Conn, query string, args ...any) (int64, error) {
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
