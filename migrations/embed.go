// Package migrations embeds the SQL schema of the persistent key-value store.
package migrations

import (
	"embed"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
