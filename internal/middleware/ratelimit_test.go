package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(PerMinute(2))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("198.51.100.1"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := call("198.51.100.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "31" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	if rec := call("198.51.100.2"); rec.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d", rec.Code)
	}
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	h := RateLimit(PerMinute(2))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	allowed := 0
	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "198.51.100.1:1234"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("allowed %d of 20, want 2", allowed)
	}
}

func TestPerMinuteZeroDisablesLimit(t *testing.T) {
	h := RateLimit(PerMinute(0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
}

func TestIdleVisitorsAreCollected(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ipl := newIPLimiter(PerMinute(5))
	ipl.now = func() time.Time { return now }

	ipl.get("a")
	now = now.Add(limiterIdleTTL + time.Second)
	ipl.get("b")

	if _, ok := ipl.visitors["a"]; ok {
		t.Fatal("idle visitor not collected")
	}
	if _, ok := ipl.visitors["b"]; !ok {
		t.Fatal("active visitor missing")
	}
}
