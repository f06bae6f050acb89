package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

const exportPageSize = 500

type approvals interface {
	Approve(ctx context.Context, actor *model.Admin, staffID string, origin audit.Origin) (*model.Staff, error)
	Reject(ctx context.Context, actor *model.Admin, staffID string, origin audit.Origin) error
}

type auditRecorder interface {
	Record(ctx context.Context, ev audit.Event) *model.AuditEntry
}

// AdminStaffHandler handles staff moderation by administrators.
type AdminStaffHandler struct {
	BaseHandler
	staff     staffStore
	approvals approvals
	audit     auditRecorder
	now       func() time.Time
}

func NewAdminStaffHandler(base BaseHandler, staff staffStore, approvals approvals, auditor auditRecorder) *AdminStaffHandler {
	return &AdminStaffHandler{BaseHandler: base, staff: staff, approvals: approvals, audit: auditor, now: time.Now}
}

func staffFilter(r *http.Request) (store.StaffFilter, error) {
	q := r.URL.Query()
	f := store.StaffFilter{
		Status:     model.ApprovalState(q.Get("status")),
		Faculty:    q.Get("faculty"),
		Department: q.Get("department"),
		Search:     q.Get("search"),
	}
	switch f.Status {
	case "", model.StatePending, model.StateApproved, model.StateDeactivated:
		return f, nil
	}
	return f, apperr.Validation(map[string]string{"status": "must be pending, approved or deactivated"})
}

// List returns one page of staff records in any state.
func (h *AdminStaffHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := staffFilter(r)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	page, limit := readPage(r, 50, 200)
	f.Limit, f.Offset = limit, (page-1)*limit

	list, total, err := h.staff.ListStaff(r.Context(), f)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if list == nil {
		list = []model.Staff{}
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success":    true,
		"staff":      list,
		"pagination": newPagination(page, limit, total),
	})
}

type decisionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Decide approves or rejects a pending registration.
func (h *AdminStaffHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	actor := appmw.AdminFromContext(r.Context())

	switch {
	case req.ID == "":
		h.errorFor(w, r, apperr.Validation(map[string]string{"id": "required"}))
	case req.Action == "approve":
		st, err := h.approvals.Approve(r.Context(), actor, req.ID, appmw.Origin(r))
		if err != nil {
			h.errorFor(w, r, err)
			return
		}
		h.writeJSONOrLog(w, r, http.StatusOK, envelope{
			"success": true,
			"message": "Staff registration approved successfully",
			"staff":   st,
		})
	case req.Action == "reject":
		if err := h.approvals.Reject(r.Context(), actor, req.ID, appmw.Origin(r)); err != nil {
			h.errorFor(w, r, err)
			return
		}
		h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "message": "Staff registration rejected"})
	default:
		h.errorFor(w, r, apperr.Validation(map[string]string{"action": "must be approve or reject"}))
	}
}

type adminStaffUpdate struct {
	profileUpdate
	IsActive *bool `json:"isActive"`
}

// Update edits a staff record and records the before and after values.
func (h *AdminStaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd adminStaffUpdate
	if err := h.readJSON(w, r, &upd); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	st, err := h.staff.StaffByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	before := snapshot(st)

	changes, err := upd.apply(st)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	if upd.IsActive != nil {
		st.IsActive = *upd.IsActive
		changes["isActive"] = *upd.IsActive
	}
	st.UpdatedAt = h.now().UTC()
	if err := h.staff.UpdateStaff(r.Context(), st); err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Admin:       appmw.AdminFromContext(r.Context()),
		Action:      "Updated staff profile for " + st.FullName,
		ActionType:  model.ActionUpdate,
		TargetModel: model.TargetUser,
		TargetID:    st.ID,
		Details:     map[string]any{"oldValues": before, "newValues": changes},
		Origin:      appmw.Origin(r),
	})
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success": true,
		"message": "Staff profile updated successfully",
		"staff":   st,
	})
}

// Deactivate hides a staff member from the directory without deleting the
// record.
func (h *AdminStaffHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	st, err := h.staff.StaffByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	if !st.IsActive {
		h.errorFor(w, r, fmt.Errorf("staff member already inactive: %w", apperr.ErrInvalidState))
		return
	}

	st.IsActive = false
	st.UpdatedAt = h.now().UTC()
	if err := h.staff.UpdateStaff(r.Context(), st); err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Admin:       appmw.AdminFromContext(r.Context()),
		Action:      fmt.Sprintf("Deactivated staff profile for %s (%s)", st.FullName, st.StaffID),
		ActionType:  model.ActionDelete,
		TargetModel: model.TargetUser,
		TargetID:    st.ID,
		Details:     map[string]any{"deactivatedStaff": snapshot(st)},
		Origin:      appmw.Origin(r),
	})
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "message": "Staff profile deactivated successfully"})
}

var exportHeader = []string{
	"staffId", "fullName", "email", "faculty", "department", "designation",
	"contactNumber", "officeAddress", "status", "createdAt",
}

// Export streams the filtered staff list as CSV.
func (h *AdminStaffHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := staffFilter(r)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}

	var rows []model.Staff
	for f.Limit = exportPageSize; ; f.Offset += exportPageSize {
		page, total, err := h.staff.ListStaff(r.Context(), f)
		if err != nil {
			h.serverErrorResponse(w, r, err)
			return
		}
		rows = append(rows, page...)
		if len(page) == 0 || len(rows) >= total {
			break
		}
	}

	filename := "staff-" + h.now().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, st := range rows {
		_ = cw.Write([]string{
			st.StaffID, st.FullName, st.Email, st.Faculty, st.Department, st.Designation,
			st.ContactNumber, st.OfficeAddress, string(model.StateOf(&st)), st.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logError(r, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Admin:       appmw.AdminFromContext(r.Context()),
		Action:      "Exported " + strconv.Itoa(len(rows)) + " staff records",
		ActionType:  model.ActionExport,
		TargetModel: model.TargetSystem,
		Details: map[string]any{
			"count":      len(rows),
			"status":     f.Status,
			"faculty":    f.Faculty,
			"department": f.Department,
			"search":     f.Search,
		},
		Origin: appmw.Origin(r),
	})
}

func snapshot(st *model.Staff) map[string]any {
	return map[string]any{
		"staffId":       st.StaffID,
		"fullName":      st.FullName,
		"email":         st.Email,
		"faculty":       st.Faculty,
		"department":    st.Department,
		"designation":   st.Designation,
		"contactNumber": st.ContactNumber,
		"officeAddress": st.OfficeAddress,
		"isApproved":    st.IsApproved,
		"isActive":      st.IsActive,
		"slug":          st.Slug,
	}
}
