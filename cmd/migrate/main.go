// Package main provides a CLI tool for running the ledger table migrations.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/etf-dashboard/internal/config"
	"github.com/etf-dashboard/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		steps  = flag.Int("steps", 1, "Number of migrations to roll back with -action=down")
		path   = flag.String("path", "", "Migrations directory (defaults to POSTGRES_MIGRATIONS_PATH)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	migrationsPath := cfg.Database.Postgres.MigrationsPath
	if *path != "" {
		migrationsPath = *path
	}

	if err := run(cfg.Database.Postgres.URL(), migrationsPath, *action, *steps); err != nil {
		log.Fatalf("Postgres migration failed: %v", err)
	}
}

func run(databaseURL, migrationsPath, action string, steps int) error {
	m, err := storage.NewMigrator(databaseURL, migrationsPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Printf("Error closing migrator: %v", err)
		}
	}()

	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		log.Println("Postgres migrations completed successfully")

	case "down":
		log.Printf("Rolling back %d Postgres migration(s)...", steps)
		if err := m.Down(steps); err != nil {
			return err
		}
		log.Println("Postgres migrations rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Printf("Current Postgres migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}
