package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/internal/account"
	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/approval"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/auth"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
	"github.com/staffdir/internal/store"
)

const password = "Str0ng!Pass"

type discardMail struct{}

func (discardMail) Send(string, string, string, string) bool { return true }

type env struct {
	mem       *store.Memory
	audit     *audit.Engine
	accounts  *account.Service
	approvals *approval.Engine
	base      BaseHandler
	root      *model.Admin
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	a := audit.NewEngine(mem, logger)
	e := &env{
		mem:       mem,
		audit:     a,
		accounts:  account.NewService(mem, mem, tokens, discardMail{}, a, logger),
		approvals: approval.NewEngine(mem, discardMail{}, a, logger),
		base:      BaseHandler{Logger: logger},
	}
	e.root, err = e.accounts.ProvisionAdmin(context.Background(), nil, account.NewAdmin{
		Username: "root", Email: "root@uni.edu", FullName: "Root", Password: password, Role: model.RoleSuperAdmin,
	}, audit.Origin{})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func (e *env) register(t *testing.T, name, staffID, email string) *model.Staff {
	t.Helper()
	st, err := e.accounts.Register(context.Background(), account.Registration{
		FullName: name, StaffID: staffID, Faculty: "Science", Department: "Physics",
		Designation: "Lecturer", Email: email, Password: password, ContactNumber: "555-0100",
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

func as(r *http.Request, p model.Principal) *http.Request {
	return r.WithContext(appmw.WithPrincipal(r.Context(), p))
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestErrorForStatus(t *testing.T) {
	h := &BaseHandler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{account.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{fmt.Errorf("login: %w", account.ErrPendingApproval), http.StatusForbidden, "your registration is pending admin approval"},
		{fmt.Errorf("staff by id: %w", apperr.ErrNotFound), http.StatusNotFound, "the requested resource could not be found"},
		{fmt.Errorf("create staff: %w", &store.ConflictError{Field: "email"}), http.StatusConflict, "email already registered"},
		{fmt.Errorf("approve: %w", fmt.Errorf("approve staff: already approved: %w", apperr.ErrInvalidState)), http.StatusConflict, "approve staff: already approved"},
		{errors.New("boom"), http.StatusInternalServerError, "the server encountered a problem and could not process your request"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.errorFor(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decode(t, rec)["error"]; got != tt.message {
				t.Fatalf("message = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestErrorForValidationDetails(t *testing.T) {
	h := &BaseHandler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()
	h.errorFor(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.Validation(map[string]string{"email": "Invalid email address"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	details, _ := decode(t, rec)["details"].(map[string]any)
	if details["email"] != "Invalid email address" {
		t.Fatalf("details = %v", details)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	e := newEnv(t)
	h := NewAuthHandler(e.base, e.accounts, false)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"fullName": "Jane Doe", "staffId": "stf001", "faculty": "Science", "department": "Physics",
		"designation": "Lecturer", "email": "jane@uni.edu", "password": password,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body)
	}
	id := decode(t, rec)["user"].(map[string]any)["id"].(string)

	login := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Login(rec, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "JANE@uni.edu", "password": password}))
		return rec
	}

	if rec := login(); rec.Code != http.StatusForbidden {
		t.Fatalf("pending login status = %d body=%s", rec.Code, rec.Body)
	}

	if _, err := e.approvals.Approve(context.Background(), e.root, id, audit.Origin{}); err != nil {
		t.Fatal(err)
	}

	rec = login()
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	if c := cookies[appmw.AuthCookieName]; c == nil || !c.HttpOnly || c.Value == "" || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("auth cookie = %+v", c)
	}
	if c := cookies[appmw.RoleCookieName]; c == nil || c.Value != "staff" {
		t.Fatalf("role cookie = %+v", c)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	h := NewAuthHandler(e.base, e.accounts, false)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{"fullName": "J", "unexpected": "x"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]string{"fullName": "J"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation status = %d", rec.Code)
	}
	if _, ok := decode(t, rec)["details"].(map[string]any)["password"]; !ok {
		t.Fatalf("missing password detail: %s", rec.Body)
	}
}

func TestAdminLoginAndLogout(t *testing.T) {
	e := newEnv(t)
	h := NewAuthHandler(e.base, e.accounts, true)

	rec := httptest.NewRecorder()
	h.AdminLogin(rec, jsonRequest(t, http.MethodPost, "/api/admin/auth/login", map[string]string{"username": "root", "password": password}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if !c.Secure {
			t.Errorf("cookie %s not secure", c.Name)
		}
		if c.Name == appmw.RoleCookieName && c.Value != string(model.RoleSuperAdmin) {
			t.Errorf("role cookie = %q", c.Value)
		}
	}

	rec = httptest.NewRecorder()
	h.Logout(rec, as(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), model.AdminPrincipal(e.root)))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s not cleared", c.Name)
		}
	}

	entries, _ := e.audit.Recent(context.Background(), 10, e.root.ID)
	if len(entries) != 2 || entries[0].ActionType != model.ActionLogout || entries[1].ActionType != model.ActionLogin {
		t.Fatalf("unexpected audit trail: %+v", entries)
	}
}

func TestMe(t *testing.T) {
	e := newEnv(t)
	h := NewAuthHandler(e.base, e.accounts, false)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if decode(t, rec)["authenticated"] != false {
		t.Fatalf("anonymous me = %s", rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Me(rec, as(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), model.AdminPrincipal(e.root)))
	body := decode(t, rec)
	if body["authenticated"] != true || body["type"] != "admin" || body["role"] != "super-admin" {
		t.Fatalf("admin me = %v", body)
	}
}

func TestDecide(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")
	john := e.register(t, "John Roe", "STF002", "john@uni.edu")

	decide := func(id, action string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := jsonRequest(t, http.MethodPatch, "/api/admin/staff", map[string]string{"id": id, "action": action})
		h.Decide(rec, as(r, model.AdminPrincipal(e.root)))
		return rec
	}

	if rec := decide(jane.ID, "approve"); rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := decide(jane.ID, "approve"); rec.Code != http.StatusConflict {
		t.Fatalf("second approve status = %d", rec.Code)
	}
	if rec := decide(jane.ID, "reject"); rec.Code != http.StatusConflict {
		t.Fatalf("reject approved status = %d", rec.Code)
	}
	if rec := decide(john.ID, "reject"); rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := decide(john.ID, "reject"); rec.Code != http.StatusNotFound {
		t.Fatalf("reject missing status = %d", rec.Code)
	}
	if rec := decide(jane.ID, "promote"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d", rec.Code)
	}
}

func TestAdminUpdateRecordsSnapshot(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")

	rec := httptest.NewRecorder()
	r := jsonRequest(t, http.MethodPut, "/api/admin/staff/"+jane.ID, map[string]any{"fullName": "Jane Smith", "isActive": false})
	h.Update(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", jane.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	st, err := e.mem.StaffByID(context.Background(), jane.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.FullName != "Jane Smith" || st.Slug != "jane-smith-stf001" || st.IsActive {
		t.Fatalf("stored = %+v", st)
	}

	entries, _ := e.audit.ForTarget(context.Background(), model.TargetUser, jane.ID)
	if len(entries) != 1 || entries[0].ActionType != model.ActionUpdate {
		t.Fatalf("entries = %+v", entries)
	}
	old := entries[0].Details["oldValues"].(map[string]any)
	if old["fullName"] != "Jane Doe" {
		t.Fatalf("old values = %v", old)
	}
}

func TestAdminUpdateValidation(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")

	rec := httptest.NewRecorder()
	r := jsonRequest(t, http.MethodPut, "/", map[string]any{"fullName": "J", "photoUrl": "ftp://x"})
	h.Update(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", jane.ID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	details := decode(t, rec)["details"].(map[string]any)
	if _, ok := details["fullName"]; !ok {
		t.Errorf("missing fullName detail")
	}
	if _, ok := details["photoUrl"]; !ok {
		t.Errorf("missing photoUrl detail")
	}
}

func TestDeactivate(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")

	call := func() int {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodDelete, "/api/admin/staff/"+jane.ID, nil)
		h.Deactivate(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", jane.ID))
		return rec.Code
	}
	if code := call(); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if code := call(); code != http.StatusConflict {
		t.Fatalf("second deactivate status = %d", code)
	}

	entries, _ := e.audit.ForTarget(context.Background(), model.TargetUser, jane.ID)
	if len(entries) != 1 || entries[0].ActionType != model.ActionDelete {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestExportCSV(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	e.register(t, "Jane Doe", "STF001", "jane@uni.edu")
	e.register(t, "John Roe", "STF002", "john@uni.edu")

	rec := httptest.NewRecorder()
	h.Export(rec, as(httptest.NewRequest(http.MethodGet, "/api/admin/staff/export?status=pending", nil), model.AdminPrincipal(e.root)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0][0] != "staffId" || records[1][8] != "pending" {
		t.Fatalf("records = %v", records)
	}

	entries, _ := e.audit.ForTarget(context.Background(), model.TargetSystem, "")
	if len(entries) != 1 || entries[0].ActionType != model.ActionExport {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	e := newEnv(t)
	h := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/staff?status=rejected", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	e.register(t, "Jane Doe", "STF001", "jane@uni.edu")
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/staff?status=pending&limit=1000", nil))
	body := decode(t, rec)
	pg := body["pagination"].(map[string]any)
	if pg["total"] != float64(1) || pg["limit"] != float64(200) {
		t.Fatalf("pagination = %v", pg)
	}
}

func TestListHugePageIsCapped(t *testing.T) {
	e := newEnv(t)
	admin := NewAdminStaffHandler(e.base, e.mem, e.approvals, e.audit)
	public := NewStaffHandler(e.base, e.mem)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")
	if _, err := e.approvals.Approve(context.Background(), e.root, jane.ID, audit.Origin{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		handle http.HandlerFunc
		target string
	}{
		{"admin list", admin.List, "/api/admin/staff?page=4611686018427387904&limit=200"},
		{"search", public.Search, "/api/staff/search?page=4611686018427387904&limit=100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handle(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
			}
			body := decode(t, rec)
			pg := body["pagination"].(map[string]any)
			if pg["page"] != float64(maxPage) || pg["total"] != float64(1) {
				t.Fatalf("pagination = %v", pg)
			}
			if staff := body["staff"].([]any); len(staff) != 0 {
				t.Fatalf("staff = %v", staff)
			}
		})
	}
}

func TestAnalyticsSummary(t *testing.T) {
	e := newEnv(t)
	h := NewAnalyticsHandler(e.base, e.mem)

	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")
	e.register(t, "John Roe", "STF002", "john@uni.edu")
	if _, err := e.approvals.Approve(context.Background(), e.root, jane.ID, audit.Origin{}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.Show(rec, as(httptest.NewRequest(http.MethodGet, "/api/admin/analytics", nil), model.AdminPrincipal(e.root)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	stats := decode(t, rec)["stats"].(map[string]any)
	if stats["totalStaff"] != float64(2) || stats["approvedStaff"] != float64(1) ||
		stats["pendingApproval"] != float64(1) || stats["totalFaculties"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}
	byFaculty := stats["staffByFaculty"].([]any)
	if g := byFaculty[0].(map[string]any); g["name"] != "Science" || g["count"] != float64(1) {
		t.Fatalf("staffByFaculty = %v", byFaculty)
	}
	recent := stats["recentRegistrations"].([]any)
	if len(recent) != 2 {
		t.Fatalf("recentRegistrations = %v", recent)
	}
	for _, r := range recent {
		if _, leaked := r.(map[string]any)["email"]; leaked {
			t.Fatalf("recent registration exposes email: %v", r)
		}
	}
}

func TestAnalyticsEmptyDirectory(t *testing.T) {
	e := newEnv(t)
	h := NewAnalyticsHandler(e.base, e.mem)

	rec := httptest.NewRecorder()
	h.Show(rec, httptest.NewRequest(http.MethodGet, "/api/admin/analytics", nil))
	stats := decode(t, rec)["stats"].(map[string]any)
	for _, key := range []string{"staffByFaculty", "staffByDepartment", "recentRegistrations"} {
		if list, ok := stats[key].([]any); !ok || len(list) != 0 {
			t.Fatalf("%s = %v", key, stats[key])
		}
	}
}

func TestPublicProfileHidesContactForAnonymous(t *testing.T) {
	e := newEnv(t)
	h := NewStaffHandler(e.base, e.mem)
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")

	get := func(r *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Public(rec, withParams(r, "slug", jane.Slug))
		return rec
	}

	if rec := get(httptest.NewRequest(http.MethodGet, "/api/staff/"+jane.Slug, nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("pending profile status = %d", rec.Code)
	}
	if _, err := e.approvals.Approve(context.Background(), e.root, jane.ID, audit.Origin{}); err != nil {
		t.Fatal(err)
	}

	anon := decode(t, get(httptest.NewRequest(http.MethodGet, "/", nil)))["staff"].(map[string]any)
	if _, ok := anon["email"].(string); ok && anon["email"] != "" {
		t.Fatalf("anonymous view leaked email: %v", anon)
	}
	if _, ok := anon["contactNumber"]; ok {
		t.Fatalf("anonymous view leaked phone: %v", anon)
	}

	viewer := e.register(t, "John Roe", "STF002", "john@uni.edu")
	signed := decode(t, get(as(httptest.NewRequest(http.MethodGet, "/", nil), model.StaffPrincipal(viewer))))["staff"].(map[string]any)
	if signed["email"] != "jane@uni.edu" || signed["contactNumber"] != "555-0100" {
		t.Fatalf("signed-in view = %v", signed)
	}
}

func TestUpdateOwnProfile(t *testing.T) {
	e := newEnv(t)
	h := NewStaffHandler(e.base, e.mem)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	jane := e.register(t, "Jane Doe", "STF001", "jane@uni.edu")

	rec := httptest.NewRecorder()
	r := jsonRequest(t, http.MethodPut, "/api/staff/profile", map[string]string{"phoneNumber": "555-0199", "officeHours": "Mon 10-12"})
	h.UpdateProfile(rec, as(r, model.StaffPrincipal(jane)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	st, _ := e.mem.StaffByID(context.Background(), jane.ID)
	if st.ContactNumber != "555-0199" || st.OfficeHours != "Mon 10-12" || st.Slug != jane.Slug {
		t.Fatalf("stored = %+v", st)
	}
	if !st.UpdatedAt.Equal(h.now()) {
		t.Fatalf("updatedAt = %v", st.UpdatedAt)
	}
}

func TestAuditForTargetRejectsUnknownModel(t *testing.T) {
	e := newEnv(t)
	h := NewAuditHandler(e.base, e.audit, audit.DefaultRetentionDays)

	rec := httptest.NewRecorder()
	h.ForTarget(rec, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "model", "Course", "id", "x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuditSweepRecordsItself(t *testing.T) {
	e := newEnv(t)
	h := NewAuditHandler(e.base, e.audit, audit.DefaultRetentionDays)

	rec := httptest.NewRecorder()
	h.Sweep(rec, as(httptest.NewRequest(http.MethodPost, "/api/admin/logs/sweep", nil), model.AdminPrincipal(e.root)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if decode(t, rec)["deleted"] != float64(0) {
		t.Fatalf("body = %s", rec.Body)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/logs?limit=5", nil))
	logs := decode(t, rec)["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("logs = %v", logs)
	}
}

func TestAuditSweepRejectsOversizedWindow(t *testing.T) {
	e := newEnv(t)
	h := NewAuditHandler(e.base, e.audit, audit.DefaultRetentionDays)

	for _, days := range []string{"0", "36501", "200000"} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/logs/sweep?days="+days, nil)
		h.Sweep(rec, as(r, model.AdminPrincipal(e.root)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: status = %d", days, rec.Code)
		}
		details, _ := decode(t, rec)["details"].(map[string]any)
		if details["days"] == nil {
			t.Fatalf("days=%s: body = %s", days, rec.Body)
		}
	}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/logs", nil))
	if logs := decode(t, rec)["logs"].([]any); len(logs) != 0 {
		t.Fatalf("rejected sweep wrote or removed entries: %v", logs)
	}
}

func TestLastSuperAdminIsProtected(t *testing.T) {
	e := newEnv(t)
	h := NewAdminsHandler(e.base, e.mem, e.accounts, e.audit)

	rec := httptest.NewRecorder()
	r := jsonRequest(t, http.MethodPut, "/", map[string]any{"role": "admin"})
	h.Update(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", e.root.ID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Create(rec, as(jsonRequest(t, http.MethodPost, "/", map[string]any{
		"username": "second", "email": "second@uni.edu", "fullName": "Second", "password": password, "role": "super-admin",
	}), model.AdminPrincipal(e.root)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	r = jsonRequest(t, http.MethodPut, "/", map[string]any{"role": "admin"})
	h.Update(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", e.root.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("demote with a second super-admin: status = %d body=%s", rec.Code, rec.Body)
	}
}

func TestCannotDeactivateSelf(t *testing.T) {
	e := newEnv(t)
	h := NewAdminsHandler(e.base, e.mem, e.accounts, e.audit)

	rec := httptest.NewRecorder()
	r := jsonRequest(t, http.MethodPut, "/", map[string]any{"isActive": false})
	h.Update(rec, withParams(as(r, model.AdminPrincipal(e.root)), "id", e.root.ID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(store.NewMemory())(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("healthy: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	Health(downDB{})(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec)["status"] != "degraded" {
		t.Fatalf("degraded: %d %s", rec.Code, rec.Body)
	}
}
