package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/internal/apperr"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

type staffStore interface {
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
	StaffBySlug(ctx context.Context, slug string) (*model.Staff, error)
	ListStaff(ctx context.Context, f store.StaffFilter) ([]model.Staff, int, error)
	UpdateStaff(ctx context.Context, st *model.Staff) error
}

// profileUpdate is a partial profile edit. Nil fields are left alone.
type profileUpdate struct {
	FullName          *string `json:"fullName"`
	Faculty           *string `json:"faculty"`
	Department        *string `json:"department"`
	Designation       *string `json:"designation"`
	ContactNumber     *string `json:"contactNumber"`
	PhoneNumber       *string `json:"phoneNumber"`
	OfficeAddress     *string `json:"officeAddress"`
	OfficeLocation    *string `json:"officeLocation"`
	OfficeHours       *string `json:"officeHours"`
	ResearchInterests *string `json:"researchInterests"`
	Biography         *string `json:"biography"`
	Education         *string `json:"education"`
	Publications      *string `json:"publications"`
	PhotoURL          *string `json:"photoUrl"`
}

type textRule struct {
	field  string
	src    *string
	dst    *string
	lo, hi int
}

// apply validates the update and writes it onto st, returning the new values
// of the fields it touched.
func (u *profileUpdate) apply(st *model.Staff) (map[string]any, error) {
	if u.ContactNumber == nil {
		u.ContactNumber = u.PhoneNumber
	}
	if u.OfficeAddress == nil {
		u.OfficeAddress = u.OfficeLocation
	}

	rules := []textRule{
		{"fullName", u.FullName, &st.FullName, 2, 100},
		{"faculty", u.Faculty, &st.Faculty, 2, 200},
		{"department", u.Department, &st.Department, 2, 200},
		{"designation", u.Designation, &st.Designation, 2, 200},
		{"contactNumber", u.ContactNumber, &st.ContactNumber, 0, 50},
		{"officeAddress", u.OfficeAddress, &st.OfficeAddress, 0, 200},
		{"officeHours", u.OfficeHours, &st.OfficeHours, 0, 200},
		{"researchInterests", u.ResearchInterests, &st.ResearchInterests, 0, 1000},
		{"biography", u.Biography, &st.Biography, 0, 2000},
		{"education", u.Education, &st.Education, 0, 1000},
		{"publications", u.Publications, &st.Publications, 0, 2000},
	}

	fields := map[string]string{}
	changes := map[string]any{}
	for _, rule := range rules {
		if rule.src == nil {
			continue
		}
		v := strings.TrimSpace(*rule.src)
		if n := len([]rune(v)); n < rule.lo || n > rule.hi {
			fields[rule.field] = lengthMessage(rule.lo, rule.hi)
			continue
		}
		changes[rule.field] = v
	}
	if u.PhotoURL != nil {
		v := strings.TrimSpace(*u.PhotoURL)
		if v != "" && !validHTTPURL(v) {
			fields["photoUrl"] = "must be an http(s) URL"
		} else {
			changes["photoUrl"] = v
		}
	}
	if err := apperr.Validation(fields); err != nil {
		return nil, err
	}

	oldName := st.FullName
	for _, rule := range rules {
		if v, ok := changes[rule.field]; ok {
			*rule.dst = v.(string)
		}
	}
	if v, ok := changes["photoUrl"]; ok {
		st.PhotoURL = v.(string)
	}
	if st.FullName != oldName {
		st.Slug = model.Slugify(st.FullName, st.StaffID)
	}
	return changes, nil
}

func lengthMessage(lo, hi int) string {
	if lo > 0 {
		return fmt.Sprintf("must be between %d and %d characters", lo, hi)
	}
	return fmt.Sprintf("must be at most %d characters", hi)
}

func validHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// publicView hides contact details from anonymous visitors.
func publicView(st model.Staff, signedIn bool) model.Staff {
	if !signedIn {
		st.Email = ""
		st.ContactNumber = ""
		st.OfficeAddress = ""
	}
	return st
}

// StaffHandler serves staff self-service and the public directory.
type StaffHandler struct {
	BaseHandler
	staff staffStore
	now   func() time.Time
}

func NewStaffHandler(base BaseHandler, staff staffStore) *StaffHandler {
	return &StaffHandler{BaseHandler: base, staff: staff, now: time.Now}
}

// Profile returns the signed-in staff member's own record.
func (h *StaffHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "user": appmw.StaffFromContext(r.Context())})
}

// UpdateProfile applies a partial edit to the signed-in staff member.
func (h *StaffHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd profileUpdate
	if err := h.readJSON(w, r, &upd); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	st := *appmw.StaffFromContext(r.Context())
	if _, err := upd.apply(&st); err != nil {
		h.errorFor(w, r, err)
		return
	}
	st.UpdatedAt = h.now().UTC()
	if err := h.staff.UpdateStaff(r.Context(), &st); err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "message": "Profile updated successfully", "user": st})
}

// DeactivateProfile lets a staff member withdraw from the directory.
func (h *StaffHandler) DeactivateProfile(w http.ResponseWriter, r *http.Request) {
	st := *appmw.StaffFromContext(r.Context())
	st.IsActive = false
	st.UpdatedAt = h.now().UTC()
	if err := h.staff.UpdateStaff(r.Context(), &st); err != nil {
		h.errorFor(w, r, err)
		return
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "message": "Account deactivated successfully"})
}

// Public returns an approved staff profile by slug.
func (h *StaffHandler) Public(w http.ResponseWriter, r *http.Request) {
	st, err := h.staff.StaffBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errorFor(w, r, err)
		return
	}
	if model.StateOf(st) != model.StateApproved {
		h.errorFor(w, r, apperr.ErrNotFound)
		return
	}

	signedIn := appmw.PrincipalFromContext(r.Context()) != nil
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "staff": publicView(*st, signedIn)})
}

// Search lists approved staff, filtered by faculty, department and a
// case-insensitive search term.
func (h *StaffHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, limit := readPage(r, 20, 100)
	q := r.URL.Query()

	list, total, err := h.staff.ListStaff(r.Context(), store.StaffFilter{
		Status:     model.StateApproved,
		Faculty:    q.Get("faculty"),
		Department: q.Get("department"),
		Search:     q.Get("search"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	signedIn := appmw.PrincipalFromContext(r.Context()) != nil
	out := make([]model.Staff, 0, len(list))
	for _, st := range list {
		out = append(out, publicView(st, signedIn))
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success":    true,
		"staff":      out,
		"pagination": newPagination(page, limit, total),
	})
}
