// Package db carries the embedded SQL migrations.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations is the migration filesystem rooted at the migrations directory.
var Migrations fs.FS

func init() {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	Migrations = sub
}
