// Package migrations embeds the PostgreSQL schema migrations, in
// golang-migrate's NNNNNN_name.{up,down}.sql layout.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
