// Package migrations embeds the SQL migrations applied at startup.
package migrations

import "embed"

// FS holds the versioned up/down migration files.
//
//go:embed *.sql
var FS embed.FS
