// Command migrate applies the goose SQL migrations in ./migrations against
// the configured Postgres database. Deployed environments run this before
// the API starts; development uses gorm AutoMigrate instead.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/garagedesk/workshop-api/internal/config"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "./migrations"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate <up|down|status|version|create NAME>")
	}
	command := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	switch command {
	case "up":
		if err := goose.Up(db, migrationsDir); err != nil {
			return fmt.Errorf("up failed: %w", err)
		}
		fmt.Println("database is up to date")

	case "down":
		if err := goose.Down(db, migrationsDir); err != nil {
			return fmt.Errorf("down failed: %w", err)
		}
		fmt.Println("rolled back one migration")

	case "status":
		if err := goose.Status(db, migrationsDir); err != nil {
			return fmt.Errorf("status failed: %w", err)
		}

	case "version":
		if err := goose.Version(db, migrationsDir); err != nil {
			return fmt.Errorf("version failed: %w", err)
		}

	case "create":
		if len(args) < 2 {
			return fmt.Errorf("create requires a migration name")
		}
		if err := goose.Create(db, migrationsDir, args[1], "sql"); err != nil {
			return fmt.Errorf("create failed: %w", err)
		}
		fmt.Printf("created migration %s\n", args[1])

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}
