package sandbox

import "embed"

// Migrations holds the schema, applied with db.NewMigrator(pool, Migrations, "migrations").
//
//go:embed migrations/*.sql
var Migrations embed.FS
