// Package migrations embeds the SQLite schema migrations for the points store.
package migrations

import "embed"

// FS contains embedded SQLite migrations.
//
//go:embed *.sql
var FS embed.FS
