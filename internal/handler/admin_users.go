package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/internal/account"
	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
)

type adminManagementStore interface {
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	AdminByID(ctx context.Context, id string) (*model.Admin, error)
	UpdateAdminAccess(ctx context.Context, id string, role model.Role, active bool, at time.Time) error
}

type adminProvisioner interface {
	ProvisionAdmin(ctx context.Context, actor *model.Admin, n account.NewAdmin, origin audit.Origin) (*model.Admin, error)
}

// AdminsHandler handles super-admin management of administrator accounts.
type AdminsHandler struct {
	BaseHandler
	admins    adminManagementStore
	provision adminProvisioner
	audit     auditRecorder
	now       func() time.Time
}

func NewAdminsHandler(base BaseHandler, admins adminManagementStore, provision adminProvisioner, auditor auditRecorder) *AdminsHandler {
	return &AdminsHandler{BaseHandler: base, admins: admins, provision: provision, audit: auditor, now: time.Now}
}

// List returns all administrator accounts.
func (h *AdminsHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.ListAdmins(r.Context())
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "admins": admins})
}

// Create provisions a new administrator.
func (h *AdminsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req account.NewAdmin
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	a, err := h.provision.ProvisionAdmin(r.Context(), appmw.AdminFromContext(r.Context()), req, appmw.Origin(r))
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	h.writeJSONOrLog(w, r, http.StatusCreated, envelope{"success": true, "admin": a})
}

type accessUpdate struct {
	Role     *model.Role `json:"role"`
	IsActive *bool       `json:"isActive"`
}

// Update changes an administrator's role or active flag.
func (h *AdminsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req accessUpdate
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		h.errorFor(w, r, apperr.Validation(map[string]string{"role": "must be admin or super-admin"}))
		return
	}

	id := chi.URLParam(r, "id")
	caller := appmw.AdminFromContext(r.Context())
	if id == caller.ID && req.IsActive != nil && !*req.IsActive {
		h.errorResponse(w, r, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}

	target, err := h.admins.AdminByID(r.Context(), id)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	role, active := target.Role, target.IsActive
	if req.Role != nil {
		role = *req.Role
	}
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if err := h.admins.UpdateAdminAccess(r.Context(), id, role, active, h.now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			h.errorResponse(w, r, http.StatusConflict, "cannot demote or suspend the last active super-admin")
			return
		}
		h.errorFor(w, r, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Admin:       caller,
		Action:      "Updated access for admin " + target.Username,
		ActionType:  model.ActionUpdate,
		TargetModel: model.TargetAdmin,
		TargetID:    target.ID,
		Details: map[string]any{
			"oldValues": map[string]any{"role": target.Role, "isActive": target.IsActive},
			"newValues": map[string]any{"role": role, "isActive": active},
		},
		Origin: appmw.Origin(r),
	})

	target.Role, target.IsActive = role, active
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "admin": target})
}
