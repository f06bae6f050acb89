package middleware

import (
	"context"

	"github.com/staffdir/internal/model"
)

const (
	// AuthCookieName carries the session token. It is http-only.
	AuthCookieName = "auth_token"
	// RoleCookieName carries a display-only role label for client redirects.
	// It is never read for authorization.
	RoleCookieName = "user_role"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

// WithPrincipal stores the resolved principal on ctx.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFromContext returns the principal placed by one of the gate
// middlewares, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(contextKeyPrincipal).(model.Principal)
	if !ok {
		return nil
	}
	return &p
}

// StaffFromContext returns the authenticated staff member, if any.
func StaffFromContext(ctx context.Context) *model.Staff {
	if p := PrincipalFromContext(ctx); p != nil && p.Kind == model.KindUser {
		return p.Staff
	}
	return nil
}

// AdminFromContext returns the authenticated administrator, if any.
func AdminFromContext(ctx context.Context) *model.Admin {
	if p := PrincipalFromContext(ctx); p != nil && p.Kind == model.KindAdmin {
		return p.Admin
	}
	return nil
}

// IsSuperAdmin reports whether the authenticated admin has the super-admin role.
func IsSuperAdmin(ctx context.Context) bool {
	return AdminFromContext(ctx).IsSuperAdmin()
}
