package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

type staffRepository interface {
	CreateStaff(ctx context.Context, st *model.Staff, passwordHash string) error
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
	StaffBySlug(ctx context.Context, slug string) (*model.Staff, error)
	StaffByEmail(ctx context.Context, email string) (*model.Staff, string, error)
	ListStaff(ctx context.Context, f store.StaffFilter) ([]model.Staff, int, error)
	UpdateStaff(ctx context.Context, st *model.Staff) error
	ApproveStaff(ctx context.Context, id string, at time.Time) (*model.Staff, error)
	DeletePendingStaff(ctx context.Context, id string) error
	StaffStats(ctx context.Context, groupLimit, recentLimit int) (*store.StaffStats, error)
}

type adminRepository interface {
	CountAdmins(ctx context.Context) (int, error)
	CreateAdmin(ctx context.Context, a *model.Admin, passwordHash string) error
	AdminByID(ctx context.Context, id string) (*model.Admin, error)
	AdminByUsername(ctx context.Context, username string) (*model.Admin, string, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	UpdateAdminAccess(ctx context.Context, id string, role model.Role, active bool, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// repositories is one storage backend seen through the interfaces the
// services consume.
type repositories struct {
	staff  staffRepository
	admins adminRepository
	audit  audit.Store
	health pinger
}

func memoryRepositories(m *store.Memory) *repositories {
	return &repositories{staff: m, admins: m, audit: m, health: m}
}

func postgresRepositories(db *sql.DB) *repositories {
	return &repositories{
		staff:  store.NewStaffStore(db),
		admins: store.NewAdminStore(db),
		audit:  store.NewAuditStore(db),
		health: dbPinger{db},
	}
}

type dbPinger struct{ db *sql.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
