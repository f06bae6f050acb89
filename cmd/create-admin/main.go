package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/staffdir/internal/account"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

// Provisions an administrator directly in the database. The password is read
// from ADMIN_PASSWORD so it stays out of shell history.
func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email")
	fullName := flag.String("name", "", "admin full name")
	super := flag.Bool("super", false, "grant the super-admin role")
	flag.Parse()

	if *dbURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", *dbURL)
	if err != nil {
		logger.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	role := model.RoleAdmin
	if *super {
		role = model.RoleSuperAdmin
	}

	admins := store.NewAdminStore(db)
	svc := account.NewService(nil, admins, nil, nil, nil, logger)
	a, err := svc.ProvisionAdmin(ctx, nil, account.NewAdmin{
		Username: *username,
		Email:    *email,
		FullName: *fullName,
		Password: os.Getenv("ADMIN_PASSWORD"),
		Role:     role,
	}, audit.Origin{})
	if err != nil {
		logger.Error("failed to create admin", "err", err)
		os.Exit(1)
	}
	logger.Info("admin created", "id", a.ID, "username", a.Username, "role", a.Role)
}
