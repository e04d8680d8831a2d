package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"PortfolioLedger/internal/config"
	"PortfolioLedger/internal/persistence"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|status>")
		fmt.Println("  up     - apply all pending migrations")
		fmt.Println("  down   - roll back the last migration")
		fmt.Println("  status - list migrations and whether they are applied")
		fmt.Println()
		fmt.Println("Environment (or .env):")
		fmt.Println("  PORTFOLIO_DB_DRIVER - sqlite or postgres (default: sqlite)")
		fmt.Println("  PORTFOLIO_DB_DSN    - connection string or SQLite file path")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	ctx := context.Background()
	store, err := persistence.Open(ctx, persistence.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
	})
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer store.Close()

	migrator, err := persistence.NewMigrator(store.DB(), store.Dialect())
	if err != nil {
		log.Fatalf("FATAL: migrator: %v", err)
	}

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("FATAL: migrate up: %v", err)
		}
		log.Println("INFO: all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("FATAL: migrate down: %v", err)
		}
		log.Println("INFO: last migration rolled back")

	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("FATAL: migrate status: %v", err)
		}
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			state := "pending"
			if status[name] {
				state = "applied"
			}
			fmt.Printf("%-40s %s\n", name, state)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'status')\n", os.Args[1])
		os.Exit(1)
	}
}
