// Package migrations embeds the SQL migrations applied by db.Postgres.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
