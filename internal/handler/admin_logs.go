package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
)

const maxLogLimit = 500

type auditLog interface {
	Record(ctx context.Context, ev audit.Event) *model.AuditEntry
	Recent(ctx context.Context, limit int, adminID string) ([]model.AuditEntry, error)
	ForTarget(ctx context.Context, target model.TargetModel, targetID string) ([]model.AuditEntry, error)
	SweepExpired(ctx context.Context, daysToKeep int) (int64, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	BaseHandler
	log           auditLog
	retentionDays int
}

func NewAuditHandler(base BaseHandler, log auditLog, retentionDays int) *AuditHandler {
	return &AuditHandler{BaseHandler: base, log: log, retentionDays: retentionDays}
}

// List returns the most recent entries, optionally for a single admin.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := min(queryInt(r, "limit", audit.DefaultRecentLimit), maxLogLimit)
	if limit < 1 {
		limit = audit.DefaultRecentLimit
	}

	entries, err := h.log.Recent(r.Context(), limit, r.URL.Query().Get("adminId"))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "logs": nonNil(entries)})
}

// ForTarget returns every entry about one record.
func (h *AuditHandler) ForTarget(w http.ResponseWriter, r *http.Request) {
	target := model.TargetModel(chi.URLParam(r, "model"))
	if !target.Valid() {
		h.errorFor(w, r, apperr.Validation(map[string]string{"model": "must be User, Admin or System"}))
		return
	}

	entries, err := h.log.ForTarget(r.Context(), target, chi.URLParam(r, "id"))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "logs": nonNil(entries)})
}

// Sweep deletes entries past the retention window on demand.
func (h *AuditHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", h.retentionDays)
	if days < 1 || days > audit.MaxRetentionDays {
		h.errorFor(w, r, apperr.Validation(map[string]string{
			"days": fmt.Sprintf("must be between 1 and %d", audit.MaxRetentionDays),
		}))
		return
	}

	n, err := h.log.SweepExpired(r.Context(), days)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	h.log.Record(r.Context(), audit.Event{
		Admin:       appmw.AdminFromContext(r.Context()),
		Action:      fmt.Sprintf("Removed %d audit entries older than %d days", n, days),
		ActionType:  model.ActionDelete,
		TargetModel: model.TargetSystem,
		Details:     map[string]any{"deleted": n, "daysToKeep": days},
		Origin:      appmw.Origin(r),
	})
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "deleted": n})
}

func nonNil(entries []model.AuditEntry) []model.AuditEntry {
	if entries == nil {
		return []model.AuditEntry{}
	}
	return entries
}
