// Package migrations holds the Postgres schema. Each numbered file registers
// one migration; bun derives the migration name from the file name.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
