package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/staffdir/internal/ids"
	"github.com/staffdir/internal/model"
)

// AdminSeeder is the minimal store surface needed to seed the first admin.
type AdminSeeder interface {
	CountAdmins(ctx context.Context) (int, error)
	CreateAdmin(ctx context.Context, a *model.Admin, passwordHash string) error
}

// SeedAccount holds the bootstrap credentials, usually from SEED_ADMIN_* env.
type SeedAccount struct {
	Username string
	Email    string
	Password string
}

// SeedFirstAdmin creates a super-admin from acct when the admins table is
// empty. Missing credentials are a silent no-op.
func SeedFirstAdmin(ctx context.Context, admins AdminSeeder, acct SeedAccount, logger *slog.Logger) {
	username := strings.ToLower(strings.TrimSpace(acct.Username))
	email := strings.ToLower(strings.TrimSpace(acct.Email))
	if username == "" || email == "" || acct.Password == "" {
		return
	}

	count, err := admins.CountAdmins(ctx)
	if err != nil {
		logger.Error("seed: failed to count admins", "err", err)
		return
	}
	if count > 0 {
		return
	}

	if problems := ValidatePasswordStrength(acct.Password); len(problems) > 0 {
		logger.Error("seed: password rejected", "problems", problems)
		return
	}
	hash, err := Hash(acct.Password)
	if err != nil {
		logger.Error("seed: failed to hash password", "err", err)
		return
	}

	now := time.Now().UTC()
	a := &model.Admin{
		ID:        ids.New(),
		Username:  username,
		Email:     email,
		FullName:  "System Administrator",
		Role:      model.RoleSuperAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admins.CreateAdmin(ctx, a, hash); err != nil {
		logger.Error("seed: failed to create admin", "err", err)
		return
	}
	logger.Info("seed: created first super-admin", "username", username, "email", email)
}
