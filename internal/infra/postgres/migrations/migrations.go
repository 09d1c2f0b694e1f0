package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the Postgres schema for quizzes and the results ledger.
var Migrations = migrate.NewMigrations()
