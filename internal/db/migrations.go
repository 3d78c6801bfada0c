package db

import "embed"

// MigrationsFS embeds the schema migration SQL files shipped with the
// binary, so a deployment needs nothing but the executable.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS passed to NewMigrator.
const MigrationsDir = "migrations"
