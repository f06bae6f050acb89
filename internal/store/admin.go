package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffdir/internal/model"
)

const adminColumns = `id, username, email, full_name, role, is_active, last_login, created_at, updated_at`

var adminConstraints = map[string]string{
	"admins_username_key": "username",
	"admins_email_key":    "email",
}

type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func scanAdmin(row rowScanner) (*model.Admin, error) {
	var (
		a         model.Admin
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &role, &a.IsActive,
		&lastLogin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}
	return &a, nil
}

func (s *AdminStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (s *AdminStore) CreateAdmin(ctx context.Context, a *model.Admin, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, username, email, password_hash, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Username, a.Email, passwordHash, a.FullName, string(a.Role), a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create admin: %w", conflict(err, adminConstraints))
	}
	return nil
}

func (s *AdminStore) AdminByID(ctx context.Context, id string) (*model.Admin, error) {
	a, err := scanAdmin(s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("admin by id", err)
	}
	return a, nil
}

// AdminByUsername is the only lookup that returns the password hash.
func (s *AdminStore) AdminByUsername(ctx context.Context, username string) (*model.Admin, string, error) {
	var hash string
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+`, password_hash FROM admins WHERE username = $1`, username)
	a, err := scanAdmin(scanFunc(func(dest ...any) error {
		return row.Scan(append(dest, &hash)...)
	}))
	if err != nil {
		return nil, "", notFound("admin by username", err)
	}
	return a, hash, nil
}

func (s *AdminStore) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM admins ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []model.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAdminAccess changes role and active flag. The last active super-admin
// can be neither demoted nor suspended.
func (s *AdminStore) UpdateAdminAccess(ctx context.Context, id string, role model.Role, active bool, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	defer tx.Rollback()

	var (
		curRole   string
		curActive bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT role, is_active FROM admins WHERE id = $1 FOR UPDATE`, id).Scan(&curRole, &curActive)
	if err != nil {
		return notFound("update admin", err)
	}

	losesSuper := model.Role(curRole) == model.RoleSuperAdmin && curActive &&
		(role != model.RoleSuperAdmin || !active)
	if losesSuper {
		var others int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM admins WHERE role = 'super-admin' AND is_active = TRUE AND id <> $1`,
			id).Scan(&others); err != nil {
			return fmt.Errorf("update admin: %w", err)
		}
		if others == 0 {
			return ErrLastSuperAdmin
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE admins SET role = $2, is_active = $3, updated_at = $4 WHERE id = $1`,
		id, string(role), active, at); err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	return tx.Commit()
}

func (s *AdminStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE admins SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return requireRow(res, "touch last login")
}
