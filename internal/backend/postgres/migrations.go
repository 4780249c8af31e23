package postgres

import "embed"

// Migrations holds the goose migrations for the pipeline schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations goose reads from.
const MigrationsDir = "migrations"
