package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/staffdir/internal/audit"
)

const unknown = "unknown"

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// transport address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return hostOf(r.RemoteAddr)
}

type peerKey struct{}

// Peer keeps the transport address as it arrived. It must run before
// chimw.RealIP, which rewrites RemoteAddr from forwarding headers.
func Peer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)))
	})
}

// PeerIP is the host of the connection's transport address. Unlike ClientIP
// it ignores every client-supplied header.
func PeerIP(r *http.Request) string {
	if addr, ok := r.Context().Value(peerKey{}).(string); ok {
		return hostOf(addr)
	}
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	if addr == "" {
		return unknown
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func UserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return unknown
}

// Origin bundles the caller's address and user agent for audit entries.
func Origin(r *http.Request) audit.Origin {
	return audit.Origin{IP: ClientIP(r), UserAgent: UserAgent(r)}
}
