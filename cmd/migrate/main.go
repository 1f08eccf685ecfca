package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/filechat/internal/config"
	"github.com/Rrens/filechat/internal/repository/postgres"
	"github.com/Rrens/filechat/internal/repository/sqldb"
	"github.com/joho/godotenv"
)

type migrator interface {
	Migrate() error
	MigrateDown() error
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var m migrator
	switch cfg.Database.Driver {
	case config.DriverSQLite, config.DriverMySQL:
		db, err := sqldb.Open(ctx, cfg.Database)
		if err != nil {
			fail("Failed to connect to database: %v", err)
		}
		defer db.Close()
		m = db
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database.Postgres)
		if err != nil {
			fail("Failed to connect to database: %v", err)
		}
		defer db.Close()
		m = db
	default:
		fail("Driver %s has no schema migrations", cfg.Database.Driver)
	}

	if *down {
		fmt.Printf("Rolling back %s migrations...\n", cfg.Database.Driver)
		err = m.MigrateDown()
	} else {
		fmt.Printf("Applying %s migrations...\n", cfg.Database.Driver)
		err = m.Migrate()
	}
	if err != nil {
		fail("Migration failed: %v", err)
	}

	fmt.Println("Migrations complete")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
