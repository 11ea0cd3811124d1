package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator applies the Postgres schema for the transaction ledger
type Migrator struct {
	sourceURL   string
	databaseURL string
}

// NewMigrator creates a migrator reading SQL files from migrationsPath
func NewMigrator(databaseURL, migrationsPath string) *Migrator {
	return &Migrator{
		sourceURL:   "file://" + migrationsPath,
		databaseURL: databaseURL,
	}
}

func (m *Migrator) withInstance(fn func(*migrate.Migrate) error) error {
	inst, err := migrate.New(m.sourceURL, m.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = inst.Close() // nolint:errcheck // cleanup in defer
	}()
	return fn(inst)
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	return m.withInstance(func(inst *migrate.Migrate) error {
		if err := inst.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of migrations
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return m.withInstance(func(inst *migrate.Migrate) error {
		if err := inst.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	})
}

// Version returns the current schema version and whether it is dirty
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.withInstance(func(inst *migrate.Migrate) error {
		var verr error
		version, dirty, verr = inst.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get migration version: %w", verr)
		}
		return nil
	})
	return version, dirty, err
}

// RunMigrations applies all pending migrations
func RunMigrations(databaseURL, migrationsPath string) error {
	return NewMigrator(databaseURL, migrationsPath).Up()
}
