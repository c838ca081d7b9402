// Package migrations embeds the SQL schema migrations applied by the
// database-backed stores at startup.
package migrations

import "embed"

// Files holds every versioned migration, named NNNN_description.sql.
//
//go:embed *.sql
var Files embed.FS
