package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/staffdir/internal/model"
)

// GroupCount is the number of approved staff sharing one faculty or department.
type GroupCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StaffStats summarises the directory for the admin dashboard.
type StaffStats struct {
	Total        int
	Approved     int
	Pending      int
	ByFaculty    []GroupCount
	ByDepartment []GroupCount
	Recent       []model.Staff
}

// StaffStats counts staff by approval, groups approved staff by faculty and
// department (largest first, at most groupLimit each) and returns the
// recentLimit newest registrations in any state.
func (s *StaffStore) StaffStats(ctx context.Context, groupLimit, recentLimit int) (*StaffStats, error) {
	var st StaffStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_approved),
			COUNT(*) FILTER (WHERE NOT is_approved)
		FROM staff`).Scan(&st.Total, &st.Approved, &st.Pending)
	if err != nil {
		return nil, fmt.Errorf("staff stats: %w", err)
	}

	if st.ByFaculty, err = s.groupApproved(ctx, `faculty`, groupLimit); err != nil {
		return nil, err
	}
	if st.ByDepartment, err = s.groupApproved(ctx, `department`, groupLimit); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff ORDER BY created_at DESC, id DESC LIMIT $1`, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent staff: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		one, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		st.Recent = append(st.Recent, *one)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent staff: %w", err)
	}
	return &st, nil
}

// groupApproved only ever receives the literal column names above.
func (s *StaffStore) groupApproved(ctx context.Context, column string, limit int) ([]GroupCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) AS n FROM staff
		WHERE is_approved = TRUE
		GROUP BY `+column+`
		ORDER BY n DESC, `+column+`
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("staff by %s: %w", column, err)
	}
	defer rows.Close()

	out := []GroupCount{}
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Name, &g.Count); err != nil {
			return nil, fmt.Errorf("scan %s group: %w", column, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("staff by %s: %w", column, err)
	}
	return out, nil
}

func (m *Memory) StaffStats(_ context.Context, groupLimit, recentLimit int) (*StaffStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st StaffStats
	faculties := map[string]int{}
	departments := map[string]int{}
	for _, e := range m.staff {
		s := e.staff
		st.Total++
		st.Recent = append(st.Recent, s)
		if !s.IsApproved {
			st.Pending++
			continue
		}
		st.Approved++
		faculties[s.Faculty]++
		departments[s.Department]++
	}
	st.ByFaculty = topGroups(faculties, groupLimit)
	st.ByDepartment = topGroups(departments, groupLimit)

	sort.Slice(st.Recent, func(i, j int) bool {
		if st.Recent[i].CreatedAt.Equal(st.Recent[j].CreatedAt) {
			return st.Recent[i].ID > st.Recent[j].ID
		}
		return st.Recent[i].CreatedAt.After(st.Recent[j].CreatedAt)
	})
	if recentLimit >= 0 && len(st.Recent) > recentLimit {
		st.Recent = st.Recent[:recentLimit]
	}
	return &st, nil
}

func topGroups(counts map[string]int, limit int) []GroupCount {
	out := make([]GroupCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, GroupCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
