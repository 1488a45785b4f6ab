// Package migrations embeds the SQL schema for the task store.
package migrations

import "embed"

// FS holds the migration files in apply order by name.
//
//go:embed *.sql
var FS embed.FS

// Files lists the migrations in the order they must be applied.
var Files = []string{
	"001_create_tasks.sql",
	"002_add_replanned_at.sql",
}
