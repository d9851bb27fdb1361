package repositories

import (
	"context"
	"fmt"
)

// ReadResult holds the rows of an ad hoc read in column order.
type ReadResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

// ExplorerRepository runs caller-supplied read-only SQL.
// Callers must validate the statement first; the connection is also put
// into query_only mode for the duration of the read.
type ExplorerRepository interface {
	ExecuteRead(ctx context.Context, query string, args []any, maxRows int) (*ReadResult, error)
}

type explorerRepository struct{}

// NewExplorerRepository creates a new ExplorerRepository.
func NewExplorerRepository() ExplorerRepository {
	return &explorerRepository{}
}

var _ ExplorerRepository = (*explorerRepository)(nil)

func (r *explorerRepository) ExecuteRead(ctx context.Context, query string, args []any, maxRows int) (result *ReadResult, err error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := scope.Conn.ExecContext(ctx, `PRAGMA query_only = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable query_only: %w", err)
	}
	defer func() {
		// Pooled connections must not leak the read-only flag.
		if _, resetErr := scope.Conn.ExecContext(context.WithoutCancel(ctx), `PRAGMA query_only = OFF`); resetErr != nil && err == nil {
			err = fmt.Errorf("failed to reset query_only: %w", resetErr)
		}
	}()

	rows, err := scope.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute read: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result = &ReadResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}
