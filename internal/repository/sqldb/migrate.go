package sqldb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/Rrens/filechat/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrations embed.FS

// Migrate runs all pending up migrations
func (db *DB) Migrate() error {
	return db.with(func(conn *sql.DB) error {
		return migrateUp(conn, db.driver)
	})
}

// MigrateDown rolls back every applied migration
func (db *DB) MigrateDown() error {
	return db.with(func(conn *sql.DB) error {
		m, err := newMigrate(conn, db.driver)
		if err != nil {
			return err
		}
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrate down: %w", err)
		}
		return nil
	})
}

func migrateUp(conn *sql.DB, driver string) error {
	m, err := newMigrate(conn, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Str("driver", driver).Msg("Database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}

	log.Info().Str("driver", driver).Msg("Database migration: success")
	return nil
}

// newMigrate builds a migrator over an existing handle. The migrator is
// never closed because closing it would close conn as well.
func newMigrate(conn *sql.DB, driver string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	var target database.Driver
	switch driver {
	case config.DriverSQLite:
		target, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	case config.DriverMySQL:
		target, err = migratemysql.WithInstance(conn, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("no migrations for driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
