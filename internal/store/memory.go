package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/model"
)

type memStaff struct {
	staff model.Staff
	hash  string
}

type memAdmin struct {
	admin model.Admin
	hash  string
}

// Memory implements the staff, admin and audit repositories in process
// memory. It backs the tests and runs without DATABASE_URL in development.
type Memory struct {
	mu     sync.RWMutex
	staff  map[string]*memStaff
	admins map[string]*memAdmin
	audit  []model.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		staff:  make(map[string]*memStaff),
		admins: make(map[string]*memAdmin),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Staff

func (m *Memory) CreateStaff(_ context.Context, st *model.Staff, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.staff {
		switch {
		case e.staff.Email == st.Email:
			return fmt.Errorf("create staff: %w", &ConflictError{Field: "email"})
		case e.staff.StaffID == st.StaffID:
			return fmt.Errorf("create staff: %w", &ConflictError{Field: "staffId"})
		case e.staff.Slug == st.Slug:
			return fmt.Errorf("create staff: %w", &ConflictError{Field: "slug"})
		}
	}
	m.staff[st.ID] = &memStaff{staff: *st, hash: passwordHash}
	return nil
}

func (m *Memory) StaffByID(_ context.Context, id string) (*model.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.staff[id]
	if !ok {
		return nil, fmt.Errorf("staff by id: %w", apperr.ErrNotFound)
	}
	s := e.staff
	return &s, nil
}

func (m *Memory) StaffBySlug(_ context.Context, slug string) (*model.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.staff {
		if e.staff.Slug == slug {
			s := e.staff
			return &s, nil
		}
	}
	return nil, fmt.Errorf("staff by slug: %w", apperr.ErrNotFound)
}

func (m *Memory) StaffByEmail(_ context.Context, email string) (*model.Staff, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.staff {
		if e.staff.Email == email {
			s := e.staff
			return &s, e.hash, nil
		}
	}
	return nil, "", fmt.Errorf("staff by email: %w", apperr.ErrNotFound)
}

func (m *Memory) ListStaff(_ context.Context, f StaffFilter) ([]model.Staff, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []model.Staff
	for _, e := range m.staff {
		s := e.staff
		if f.Status != "" && model.StateOf(&s) != f.Status {
			continue
		}
		if f.Faculty != "" && s.Faculty != f.Faculty {
			continue
		}
		if f.Department != "" && s.Department != f.Department {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(s.FullName), q) &&
			!strings.Contains(strings.ToLower(s.StaffID), q) &&
			!strings.Contains(strings.ToLower(s.Email), q) {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *Memory) UpdateStaff(_ context.Context, st *model.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.staff[st.ID]
	if !ok {
		return fmt.Errorf("update staff: %w", apperr.ErrNotFound)
	}
	for id, other := range m.staff {
		if id != st.ID && other.staff.Slug == st.Slug {
			return fmt.Errorf("update staff: %w", &ConflictError{Field: "slug"})
		}
	}
	updated := *st
	updated.StaffID = e.staff.StaffID
	updated.Email = e.staff.Email
	updated.IsApproved = e.staff.IsApproved
	updated.IsVerified = e.staff.IsVerified
	updated.CreatedAt = e.staff.CreatedAt
	e.staff = updated
	return nil
}

func (m *Memory) ApproveStaff(_ context.Context, id string, at time.Time) (*model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.staff[id]
	if !ok {
		return nil, fmt.Errorf("approve staff: %w", apperr.ErrNotFound)
	}
	if e.staff.IsApproved {
		return nil, fmt.Errorf("approve staff: already approved: %w", apperr.ErrInvalidState)
	}
	e.staff.IsApproved = true
	e.staff.IsVerified = true
	e.staff.UpdatedAt = at
	s := e.staff
	return &s, nil
}

func (m *Memory) DeletePendingStaff(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.staff[id]
	if !ok || e.staff.IsApproved {
		return fmt.Errorf("delete staff: %w", apperr.ErrNotFound)
	}
	delete(m.staff, id)
	return nil
}

// Admins

func (m *Memory) CountAdmins(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.admins), nil
}

func (m *Memory) CreateAdmin(_ context.Context, a *model.Admin, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.admins {
		switch {
		case e.admin.Username == a.Username:
			return fmt.Errorf("create admin: %w", &ConflictError{Field: "username"})
		case e.admin.Email == a.Email:
			return fmt.Errorf("create admin: %w", &ConflictError{Field: "email"})
		}
	}
	m.admins[a.ID] = &memAdmin{admin: *a, hash: passwordHash}
	return nil
}

func (m *Memory) AdminByID(_ context.Context, id string) (*model.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.admins[id]
	if !ok {
		return nil, fmt.Errorf("admin by id: %w", apperr.ErrNotFound)
	}
	a := e.admin
	return &a, nil
}

func (m *Memory) AdminByUsername(_ context.Context, username string) (*model.Admin, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.admins {
		if e.admin.Username == username {
			a := e.admin
			return &a, e.hash, nil
		}
	}
	return nil, "", fmt.Errorf("admin by username: %w", apperr.ErrNotFound)
}

func (m *Memory) ListAdmins(context.Context) ([]model.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Admin, 0, len(m.admins))
	for _, e := range m.admins {
		out = append(out, e.admin)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateAdminAccess(_ context.Context, id string, role model.Role, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.admins[id]
	if !ok {
		return fmt.Errorf("update admin: %w", apperr.ErrNotFound)
	}
	if e.admin.Role == model.RoleSuperAdmin && e.admin.IsActive && (role != model.RoleSuperAdmin || !active) {
		others := 0
		for oid, o := range m.admins {
			if oid != id && o.admin.Role == model.RoleSuperAdmin && o.admin.IsActive {
				others++
			}
		}
		if others == 0 {
			return ErrLastSuperAdmin
		}
	}
	e.admin.Role = role
	e.admin.IsActive = active
	e.admin.UpdatedAt = at
	return nil
}

func (m *Memory) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.admins[id]
	if !ok {
		return fmt.Errorf("touch last login: %w", apperr.ErrNotFound)
	}
	e.admin.LastLogin = &at
	return nil
}

// Audit

func (m *Memory) InsertAudit(_ context.Context, e *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := *e
	entry.Details = maps.Clone(e.Details)
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) RecentAudit(_ context.Context, limit int, adminID string) ([]model.AuditEntry, error) {
	return m.auditWhere(limit, func(e *model.AuditEntry) bool {
		return adminID == "" || e.AdminID == adminID
	}), nil
}

func (m *Memory) AuditForTarget(_ context.Context, target model.TargetModel, targetID string) ([]model.AuditEntry, error) {
	return m.auditWhere(0, func(e *model.AuditEntry) bool {
		return e.TargetModel == target && e.TargetID == targetID
	}), nil
}

func (m *Memory) DeleteAuditBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.audit[:0]
	var removed int64
	for _, e := range m.audit {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.audit = kept
	return removed, nil
}

func (m *Memory) auditWhere(limit int, match func(*model.AuditEntry) bool) []model.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.AuditEntry
	for i := range m.audit {
		e := m.audit[i]
		if !match(&e) {
			continue
		}
		if a, ok := m.admins[e.AdminID]; ok {
			e.AdminUsername = a.admin.Username
			e.AdminEmail = a.admin.Email
		}
		e.Details = maps.Clone(e.Details)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
