package main

import (
	"os"

	"booklens/internal/config"
)

func loadEnvFiles() {
	// The runtime environment (e.g. Docker) wins over the files.
	config.LoadEnvFiles()
}

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "db/migrations"
}
