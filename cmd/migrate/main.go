package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/staffdir/internal/app"
)

func main() {
	_ = godotenv.Load()

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	steps := flag.Int("steps", 0, "with down: number of migrations to roll back (0 = all)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	db, err := sql.Open("pgx", *dbURL)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	m, err := app.NewMigrator(db)
	if err != nil {
		slog.Error("failed to load migrations", "err", err)
		os.Exit(1)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			slog.Error("failed to read version", "err", verr)
			os.Exit(1)
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		return
	}
	if err != nil {
		slog.Error("migration failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
	fmt.Println("migrations complete")
}
