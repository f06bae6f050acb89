package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgentDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Del("User-Agent")
	if got := UserAgent(r); got != "unknown" {
		t.Errorf("UserAgent = %q", got)
	}
	r.Header.Set("User-Agent", "curl/8")
	if o := Origin(r); o.UserAgent != "curl/8" || o.IP == "" {
		t.Errorf("Origin = %+v", o)
	}
}

func TestPeerIPIgnoresForwardingHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.9:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("X-Real-IP", "198.51.100.4")
	if got := PeerIP(r); got != "192.0.2.9" {
		t.Fatalf("PeerIP = %q", got)
	}

	var seen string
	h := Peer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.RemoteAddr = "203.0.113.7:0"
		seen = PeerIP(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "192.0.2.9" {
		t.Fatalf("PeerIP after rewrite = %q", seen)
	}
}
