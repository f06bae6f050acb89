package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/staffdir/internal/config"
)

const seedPassword = "Str0ng!Pass"

func newTestApp(t *testing.T, loginRate int) (*App, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		Port:               "0",
		Env:                "test",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		TokenTTL:           time.Hour,
		AuditRetentionDays: 90,
		AuditSweepInterval: time.Hour,
		LoginRatePerMinute: loginRate,
		SeedAdminUsername:  "root",
		SeedAdminEmail:     "root@uni.edu",
		SeedAdminPassword:  seedPassword,
	}
	app, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(app.Close)
	return app, app.routes()
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	r.RemoteAddr = "192.0.2.10:40000"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func tokenFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("no token in %s (%v)", rec.Body, err)
	}
	return body.Token
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestApp(t, 100)

	if rec := do(t, h, http.MethodGet, "/api/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/api/health",status="200"} 1`) {
		t.Fatalf("health request not counted:\n%s", rec.Body)
	}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	_, h := newTestApp(t, 100)

	if rec := do(t, h, http.MethodGet, "/api/admin/staff", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/admin/analytics", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous analytics status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/admin/auth/login", "", `{"username":"root","password":"`+seedPassword+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login status = %d body=%s", rec.Code, rec.Body)
	}
	admin := tokenFrom(t, rec)

	if rec := do(t, h, http.MethodGet, "/api/admin/staff", admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("admin list status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/admin/analytics", admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/admin/admins", admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("super-admin route status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/staff/profile", admin, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin token on staff route status = %d", rec.Code)
	}
}

func TestRegistrationApprovalFlow(t *testing.T) {
	_, h := newTestApp(t, 100)

	rec := do(t, h, http.MethodPost, "/api/auth/register", "", `{"fullName":"Jane Doe","staffId":"STF001",
		"faculty":"Science","department":"Physics","designation":"Lecturer",
		"email":"jane@uni.edu","password":"`+seedPassword+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body)
	}
	var reg struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}

	login := `{"email":"jane@uni.edu","password":"` + seedPassword + `"}`
	if rec := do(t, h, http.MethodPost, "/api/auth/login", "", login); rec.Code != http.StatusForbidden {
		t.Fatalf("pending login status = %d", rec.Code)
	}

	admin := tokenFrom(t, do(t, h, http.MethodPost, "/api/admin/auth/login", "", `{"username":"root","password":"`+seedPassword+`"}`))
	if rec := do(t, h, http.MethodPatch, "/api/admin/staff", admin, `{"id":"`+reg.User.ID+`","action":"approve"}`); rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d body=%s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	staff := tokenFrom(t, rec)

	if rec := do(t, h, http.MethodGet, "/api/staff/profile", staff, ""); rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/admin/staff", staff, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("staff token on admin route status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/staff/jane-doe-stf001", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("public profile status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/admin/logs/User/"+reg.User.ID, admin, "")
	var logs struct {
		Logs []struct {
			ActionType string `json:"actionType"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs.Logs) != 1 || logs.Logs[0].ActionType != "approve" {
		t.Fatalf("logs = %s", rec.Body)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	_, h := newTestApp(t, 2)

	body := `{"email":"nobody@uni.edu","password":"whatever"}`
	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodPost, "/api/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third attempt status = %d", rec.Code)
	}
}

func TestLoginLimitIgnoresForwardingHeaders(t *testing.T) {
	_, h := newTestApp(t, 2)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"nobody@uni.edu","password":"whatever"}`))
		r.RemoteAddr = "192.0.2.10:40000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	if codes[2] != http.StatusTooManyRequests || codes[4] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
