package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/auth"
	"github.com/staffdir/internal/model"
)

const (
	reasonAuthRequired = "authentication required"
	reasonPrivileges   = "insufficient privileges"
)

// Rejection causes, logged and counted but never returned to the caller.
const (
	causeNoToken      = "no_token"
	causeBadToken     = "bad_token"
	causeExpired      = "expired_token"
	causeWrongKind    = "wrong_kind"
	causeUnknown      = "unknown_principal"
	causeInactive     = "inactive_principal"
	causeRoleTooLow   = "role_too_low"
	causeLookupFailed = "lookup_failed"
)

// UnauthorizedError is the single failure the gate reports. Reason is safe to
// show to the caller.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string { return e.Reason }

func (e *UnauthorizedError) Is(target error) bool { return target == apperr.ErrUnauthorized }

type TokenVerifier interface {
	Verify(token string) (auth.Payload, error)
}

type StaffFinder interface {
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
}

type AdminFinder interface {
	AdminByID(ctx context.Context, id string) (*model.Admin, error)
}

// CauseCounter counts rejections by cause.
type CauseCounter interface {
	Inc(cause string)
}

// Gate authenticates requests from a bearer token or the auth cookie and
// enforces principal kind and role. It keeps no state between requests.
type Gate struct {
	tokens TokenVerifier
	staff  StaffFinder
	admins AdminFinder
	logger *slog.Logger
	causes CauseCounter
}

func NewGate(tokens TokenVerifier, staff StaffFinder, admins AdminFinder, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, staff: staff, admins: admins, logger: logger, causes: nopCauses{}}
}

// WithCauseCounter records every rejection cause on c.
func (g *Gate) WithCauseCounter(c CauseCounter) *Gate {
	g.causes = c
	return g
}

// TokenFromRequest reads the Authorization bearer token, falling back to the
// auth cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// payload runs extract and verify.
func (g *Gate) payload(r *http.Request) (auth.Payload, string) {
	tok := TokenFromRequest(r)
	if tok == "" {
		return auth.Payload{}, causeNoToken
	}
	p, err := g.tokens.Verify(tok)
	switch {
	case err == nil:
		return p, ""
	case errors.Is(err, auth.ErrTokenExpired):
		return auth.Payload{}, causeExpired
	default:
		return auth.Payload{}, causeBadToken
	}
}

// resolve loads the principal named by p. The returned principal may be
// inactive; callers decide what that means.
func (g *Gate) resolve(ctx context.Context, p auth.Payload) (model.Principal, string) {
	switch p.Kind {
	case model.KindUser:
		s, err := g.staff.StaffByID(ctx, p.ID)
		if err != nil {
			return model.Principal{}, g.lookupCause(err, p)
		}
		return model.StaffPrincipal(s), ""
	case model.KindAdmin:
		a, err := g.admins.AdminByID(ctx, p.ID)
		if err != nil {
			return model.Principal{}, g.lookupCause(err, p)
		}
		return model.AdminPrincipal(a), ""
	}
	return model.Principal{}, causeBadToken
}

func (g *Gate) lookupCause(err error, p auth.Payload) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return causeUnknown
	}
	g.logger.Error("gate: principal lookup failed", "err", err, "kind", p.Kind, "principal_id", p.ID)
	return causeLookupFailed
}

func (g *Gate) reject(r *http.Request, cause, reason string, principalID string) error {
	g.causes.Inc(cause)
	level := slog.LevelDebug
	if cause != causeNoToken {
		level = slog.LevelWarn
	}
	g.logger.Log(r.Context(), level, "gate: request rejected",
		"cause", cause,
		"principal_id", principalID,
		"method", r.Method,
		"path", r.URL.Path,
		"ip", ClientIP(r),
	)
	return &UnauthorizedError{Reason: reason}
}

// Authenticate resolves the request's active principal, if any.
func (g *Gate) Authenticate(r *http.Request) (model.Principal, bool) {
	p, cause := g.payload(r)
	if cause != "" {
		return model.Principal{}, false
	}
	principal, cause := g.resolve(r.Context(), p)
	if cause != "" || !principal.Active() {
		return model.Principal{}, false
	}
	return principal, true
}

// RequireUser admits only an active staff member.
func (g *Gate) RequireUser(r *http.Request) (*model.Staff, error) {
	p, cause := g.payload(r)
	if cause != "" {
		return nil, g.reject(r, cause, reasonAuthRequired, "")
	}
	if p.Kind != model.KindUser {
		return nil, g.reject(r, causeWrongKind, reasonAuthRequired, p.ID)
	}
	principal, cause := g.resolve(r.Context(), p)
	if cause != "" {
		return nil, g.reject(r, cause, reasonAuthRequired, p.ID)
	}
	if !principal.Active() {
		return nil, g.reject(r, causeInactive, reasonAuthRequired, p.ID)
	}
	return principal.Staff, nil
}

// RequireAdmin admits only an active administrator. With requireSuperAdmin
// the stored role must be super-admin; a plain admin never qualifies.
func (g *Gate) RequireAdmin(r *http.Request, requireSuperAdmin bool) (*model.Admin, error) {
	p, cause := g.payload(r)
	if cause != "" {
		return nil, g.reject(r, cause, reasonAuthRequired, "")
	}
	if p.Kind != model.KindAdmin {
		return nil, g.reject(r, causeWrongKind, reasonAuthRequired, p.ID)
	}
	principal, cause := g.resolve(r.Context(), p)
	if cause != "" {
		return nil, g.reject(r, cause, reasonAuthRequired, p.ID)
	}
	if !principal.Active() {
		return nil, g.reject(r, causeInactive, reasonAuthRequired, p.ID)
	}
	if requireSuperAdmin && !principal.Admin.IsSuperAdmin() {
		return nil, g.reject(r, causeRoleTooLow, reasonPrivileges, p.ID)
	}
	return principal.Admin, nil
}

// OptionalAuth never fails. It returns nil when there is no usable principal.
func (g *Gate) OptionalAuth(r *http.Request) *model.Principal {
	p, ok := g.Authenticate(r)
	if !ok {
		return nil
	}
	return &p
}

type nopCauses struct{}

func (nopCauses) Inc(string) {}
