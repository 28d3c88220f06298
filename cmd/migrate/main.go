package main

import (
	"context"
	"io/fs"
	"os"
	"time"

	"jobboard/internal/database"
	"jobboard/internal/logging"
	"jobboard/migrations"
)

func main() {
	log := logging.New(os.Stdout, os.Getenv("LOG_LEVEL"))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	// MIGRATIONS_DIR overrides the schema compiled into the binary.
	var source fs.FS = migrations.FS
	origin := "embedded"
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		source, origin = os.DirFS(dir), dir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL, 1)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := database.ApplyMigrations(ctx, db, source, log)
	if err != nil {
		log.Error("migration failed", "error", err, "applied", applied)
		db.Close()
		os.Exit(1)
	}

	log.Info("migrations up to date", "source", origin, "applied", len(applied))
}
