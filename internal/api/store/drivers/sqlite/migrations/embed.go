package migrations

import "embed"

// Migrations holds the SQL migration files compiled into the binary.
//
//go:embed *.sql
var Migrations embed.FS
