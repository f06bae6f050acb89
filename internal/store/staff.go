package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/model"
)

const staffColumns = `id, staff_id, email, full_name, faculty, department, designation,
	office_address, contact_number, office_hours, research_interests, biography,
	education, publications, photo_url, is_verified, is_approved, is_active, slug,
	created_at, updated_at`

var staffConstraints = map[string]string{
	"staff_email_key":    "email",
	"staff_staff_id_key": "staffId",
	"staff_slug_key":     "slug",
}

// StaffFilter narrows ListStaff. Zero values mean "any".
type StaffFilter struct {
	Status     model.ApprovalState
	Faculty    string
	Department string
	Search     string
	Limit      int
	Offset     int
}

type StaffStore struct {
	db *sql.DB
}

func NewStaffStore(db *sql.DB) *StaffStore {
	return &StaffStore{db: db}
}

func scanStaff(row rowScanner) (*model.Staff, error) {
	var s model.Staff
	err := row.Scan(
		&s.ID, &s.StaffID, &s.Email, &s.FullName, &s.Faculty, &s.Department, &s.Designation,
		&s.OfficeAddress, &s.ContactNumber, &s.OfficeHours, &s.ResearchInterests, &s.Biography,
		&s.Education, &s.Publications, &s.PhotoURL, &s.IsVerified, &s.IsApproved, &s.IsActive, &s.Slug,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *StaffStore) CreateStaff(ctx context.Context, st *model.Staff, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (id, staff_id, email, password_hash, full_name, faculty, department, designation,
			office_address, contact_number, office_hours, research_interests, biography,
			education, publications, photo_url, is_verified, is_approved, is_active, slug,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		st.ID, st.StaffID, st.Email, passwordHash, st.FullName, st.Faculty, st.Department, st.Designation,
		st.OfficeAddress, st.ContactNumber, st.OfficeHours, st.ResearchInterests, st.Biography,
		st.Education, st.Publications, st.PhotoURL, st.IsVerified, st.IsApproved, st.IsActive, st.Slug,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create staff: %w", conflict(err, staffConstraints))
	}
	return nil
}

func (s *StaffStore) StaffByID(ctx context.Context, id string) (*model.Staff, error) {
	st, err := scanStaff(s.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("staff by id", err)
	}
	return st, nil
}

func (s *StaffStore) StaffBySlug(ctx context.Context, slug string) (*model.Staff, error) {
	st, err := scanStaff(s.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE slug = $1`, slug))
	if err != nil {
		return nil, notFound("staff by slug", err)
	}
	return st, nil
}

// StaffByEmail is the only lookup that returns the password hash.
func (s *StaffStore) StaffByEmail(ctx context.Context, email string) (*model.Staff, string, error) {
	var hash string
	row := s.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+`, password_hash FROM staff WHERE email = $1`, email)
	st, err := scanStaff(scanFunc(func(dest ...any) error {
		return row.Scan(append(dest, &hash)...)
	}))
	if err != nil {
		return nil, "", notFound("staff by email", err)
	}
	return st, hash, nil
}

// ListStaff returns one page of staff, newest first, and the total matching count.
func (s *StaffStore) ListStaff(ctx context.Context, f StaffFilter) ([]model.Staff, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Status {
	case model.StatePending:
		where = append(where, "is_approved = FALSE")
	case model.StateApproved:
		where = append(where, "is_approved = TRUE AND is_active = TRUE")
	case model.StateDeactivated:
		where = append(where, "is_approved = TRUE AND is_active = FALSE")
	}
	if f.Faculty != "" {
		where = append(where, "faculty = "+arg(f.Faculty))
	}
	if f.Department != "" {
		where = append(where, "department = "+arg(f.Department))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		p := arg(likePattern(q))
		where = append(where, "(full_name ILIKE "+p+" OR staff_id ILIKE "+p+" OR email ILIKE "+p+")")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	query := `SELECT ` + staffColumns + ` FROM staff` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(max(f.Offset, 0))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	return out, total, nil
}

// UpdateStaff writes the editable profile columns and the active flag.
// Approval flags only change through ApproveStaff.
func (s *StaffStore) UpdateStaff(ctx context.Context, st *model.Staff) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff SET full_name = $2, faculty = $3, department = $4, designation = $5,
			office_address = $6, contact_number = $7, office_hours = $8, research_interests = $9,
			biography = $10, education = $11, publications = $12, photo_url = $13,
			is_active = $14, slug = $15, updated_at = $16
		WHERE id = $1`,
		st.ID, st.FullName, st.Faculty, st.Department, st.Designation,
		st.OfficeAddress, st.ContactNumber, st.OfficeHours, st.ResearchInterests,
		st.Biography, st.Education, st.Publications, st.PhotoURL,
		st.IsActive, st.Slug, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update staff: %w", conflict(err, staffConstraints))
	}
	return requireRow(res, "update staff")
}

// ApproveStaff flips a pending record to approved in one conditional write.
// A record that exists but is already approved yields apperr.ErrInvalidState.
func (s *StaffStore) ApproveStaff(ctx context.Context, id string, at time.Time) (*model.Staff, error) {
	st, err := scanStaff(s.db.QueryRowContext(ctx, `
		UPDATE staff SET is_approved = TRUE, is_verified = TRUE, updated_at = $2
		WHERE id = $1 AND is_approved = FALSE
		RETURNING `+staffColumns, id, at))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approve staff: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM staff WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("approve staff: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("approve staff: already approved: %w", apperr.ErrInvalidState)
	}
	return nil, fmt.Errorf("approve staff: %w", apperr.ErrNotFound)
}

// DeletePendingStaff removes a record that is still awaiting approval.
func (s *StaffStore) DeletePendingStaff(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM staff WHERE id = $1 AND is_approved = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return requireRow(res, "delete staff")
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
