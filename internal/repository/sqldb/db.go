// Package sqldb stores conversation turns in SQLite or MySQL through
// database/sql.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rrens/filechat/internal/config"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// DB wraps a database/sql handle that can be swapped out underneath its
// users while a restore replaces the database file.
type DB struct {
	mu     sync.RWMutex
	conn   *sql.DB
	driver string
	dsn    string
	path   string
}

// Open connects to the configured SQLite file or MySQL server
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db := &DB{driver: cfg.Driver}

	switch cfg.Driver {
	case config.DriverSQLite:
		db.path = cfg.SQLitePath()
		db.dsn = sqliteDSN(db.path)
		if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	case config.DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.MySQL.User
		mc.Passwd = cfg.MySQL.Password
		mc.Net = "tcp"
		mc.Addr = cfg.MySQL.Addr()
		mc.DBName = cfg.MySQL.Database
		mc.ParseTime = true
		mc.Loc = time.UTC
		db.dsn = mc.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", cfg.Driver)
	}

	conn, err := db.open(ctx)
	if err != nil {
		return nil, err
	}
	db.conn = conn

	return db, nil
}

// sqliteDSN keeps the rollback journal so committed data is always in the
// main file, which is what the backup hash covers.
func sqliteDSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		path,
	)
}

func (db *DB) open(ctx context.Context) (*sql.DB, error) {
	driverName := db.driver
	conn, err := sql.Open(driverName, db.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if db.driver == config.DriverSQLite {
		conn.SetMaxOpenConns(1) // SQLite only supports one writer
		conn.SetMaxIdleConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// Driver returns the configured driver name
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the SQLite file path, empty for MySQL
func (db *DB) Path() string {
	return db.path
}

// Close closes the database handle
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.with(func(conn *sql.DB) error {
		return conn.PingContext(ctx)
	})
}

// Lock blocks all queries until the returned function is called. Callers
// reading the SQLite file use it to get a consistent snapshot.
func (db *DB) Lock() func() {
	db.mu.Lock()
	return db.mu.Unlock
}

// Replace closes the handle, lets swap rewrite the database file, then
// reopens the file and migrates it. Queries block for the duration.
func (db *DB) Replace(ctx context.Context, swap func(path string) error) error {
	if db.driver != config.DriverSQLite {
		return fmt.Errorf("replace is only supported for sqlite, got %s", db.driver)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		db.conn = nil
	}

	swapErr := swap(db.path)

	// Reopen even when the swap failed so the server keeps serving the old file
	conn, err := db.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	db.conn = conn

	if swapErr != nil {
		return swapErr
	}

	return migrateUp(conn, db.driver)
}

func (db *DB) with(fn func(*sql.DB) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.conn == nil {
		return fmt.Errorf("database is closed")
	}
	return fn(db.conn)
}
