// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/blocke-ledger/internal/config"
	"github.com/blocke-ledger/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, mongo")
		steps  = flag.Int("steps", 1, "Number of migrations to roll back with -action=down")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch *dbType {
	case "postgres":
		if err := runPostgresMigrations(cfg, *action, *steps); err != nil {
			log.Fatalf("Postgres migration failed: %v", err)
		}
	case "mongo":
		if err := runMongoIndexes(cfg, *action); err != nil {
			log.Fatalf("MongoDB index setup failed: %v", err)
		}
	default:
		log.Fatalf("Unknown database type: %s", *dbType)
	}
}

func runPostgresMigrations(cfg *config.Config, action string, steps int) error {
	migrator := storage.NewMigrator(cfg.Database.Postgres.URL(), cfg.Migrations.Path)

	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
		log.Println("Postgres migrations completed successfully")

	case "down":
		log.Printf("Rolling back %d Postgres migration(s)...", steps)
		if err := migrator.Down(steps); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back successfully")

	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		log.Printf("Current Postgres migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runMongoIndexes(cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("MongoDB only supports the 'up' action")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Database.Mongo.ConnectTimeout)
	defer cancel()

	db := storage.NewMongoDB(&cfg.Database.Mongo)
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Printf("Error closing MongoDB connection: %v", err)
		}
	}()

	log.Println("Creating MongoDB indexes...")
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Println("MongoDB indexes created successfully")
	return nil
}
