// Package postgres embeds the PostgreSQL schema migrations.
package postgres

import "embed"

// Files holds every versioned migration, named NNNN_description.up.sql.
//
//go:embed *.sql
var Files embed.FS
