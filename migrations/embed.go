// Package migrations embeds the SQLite schema migrations applied by
// database.EnsureSchema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
