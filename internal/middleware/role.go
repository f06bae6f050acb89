package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/staffdir/internal/model"
)

// RequireUserMW admits only active staff and stores them on the context.
// Everything else gets a 401 JSON response.
func (g *Gate) RequireUserMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := g.RequireUser(r)
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), model.StaffPrincipal(s))))
	})
}

// RequireAdminMW returns middleware that admits active admins, or only
// super-admins when super is set.
func (g *Gate) RequireAdminMW(super bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := g.RequireAdmin(r, super)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), model.AdminPrincipal(a))))
		})
	}
}

// RequireSuperAdmin returns middleware that allows only super-admin users.
func (g *Gate) RequireSuperAdmin() func(http.Handler) http.Handler {
	return g.RequireAdminMW(true)
}

// OptionalAuthMW stores the principal on the context when there is one and
// always calls next.
func (g *Gate) OptionalAuthMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := g.OptionalAuth(r); p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), *p))
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
