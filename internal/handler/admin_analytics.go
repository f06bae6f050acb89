package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

const (
	analyticsGroupLimit  = 20
	analyticsRecentLimit = 10
)

type staffStats interface {
	StaffStats(ctx context.Context, groupLimit, recentLimit int) (*store.StaffStats, error)
}

// AnalyticsHandler serves the admin dashboard summary.
type AnalyticsHandler struct {
	BaseHandler
	stats staffStats
}

func NewAnalyticsHandler(base BaseHandler, stats staffStats) *AnalyticsHandler {
	return &AnalyticsHandler{BaseHandler: base, stats: stats}
}

type recentRegistration struct {
	ID          string              `json:"id"`
	FullName    string              `json:"fullName"`
	Designation string              `json:"designation"`
	Department  string              `json:"department"`
	Faculty     string              `json:"faculty"`
	Status      model.ApprovalState `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func (h *AnalyticsHandler) Show(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.StaffStats(r.Context(), analyticsGroupLimit, analyticsRecentLimit)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	recent := make([]recentRegistration, 0, len(st.Recent))
	for i := range st.Recent {
		s := &st.Recent[i]
		recent = append(recent, recentRegistration{
			ID:          s.ID,
			FullName:    s.FullName,
			Designation: s.Designation,
			Department:  s.Department,
			Faculty:     s.Faculty,
			Status:      model.StateOf(s),
			CreatedAt:   s.CreatedAt,
		})
	}

	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success": true,
		"stats": envelope{
			"totalStaff":          st.Total,
			"approvedStaff":       st.Approved,
			"pendingApproval":     st.Pending,
			"totalFaculties":      len(st.ByFaculty),
			"staffByFaculty":      nonNilGroups(st.ByFaculty),
			"staffByDepartment":   nonNilGroups(st.ByDepartment),
			"recentRegistrations": recent,
		},
	})
}

func nonNilGroups(g []store.GroupCount) []store.GroupCount {
	if g == nil {
		return []store.GroupCount{}
	}
	return g
}
