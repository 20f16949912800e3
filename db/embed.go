// Package db provides the embedded goose migrations.
package db

import "embed"

// Migrations holds the SQL migrations under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
