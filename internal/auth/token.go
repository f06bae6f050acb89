package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/staffdir/internal/model"
)

const (
	// DefaultTokenTTL is the session lifetime when none is configured.
	DefaultTokenTTL = 7 * 24 * time.Hour

	defaultIssuer = "university-staff-directory"
)

var (
	ErrMissingSecret = errors.New("auth: token secret is not configured")

	// ErrToken is the parent of every verification failure.
	ErrToken          = errors.New("auth: invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrToken)
)

// Payload is what a session token asserts about its bearer.
type Payload struct {
	ID    string
	Email string
	Kind  model.Kind
	Role  model.Role // admins only
}

type claims struct {
	Email string     `json:"email"`
	Kind  model.Kind `json:"type"`
	Role  model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens. It holds no per-token
// state; a token stays valid until it expires.
type TokenService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

type TokenOption func(*TokenService)

func WithTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIssuer(iss string) TokenOption {
	return func(s *TokenService) { s.issuer = iss }
}

func WithAudience(aud string) TokenOption {
	return func(s *TokenService) { s.audience = aud }
}

// NewTokenService returns a service signing with secret. An empty secret is a
// startup error.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	s := &TokenService{
		secret:   []byte(secret),
		ttl:      DefaultTokenTTL,
		issuer:   defaultIssuer,
		audience: defaultIssuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL is the lifetime given to issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for p and returns it with its expiry.
func (s *TokenService) Issue(p Payload) (string, time.Time, error) {
	if strings.TrimSpace(p.ID) == "" {
		return "", time.Time{}, errors.New("auth: payload id is required")
	}
	if !p.Kind.Valid() {
		return "", time.Time{}, fmt.Errorf("auth: unknown principal kind %q", p.Kind)
	}
	if p.Kind == model.KindUser && p.Role != "" {
		return "", time.Time{}, errors.New("auth: staff tokens carry no role")
	}

	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(s.ttl)
	c := claims{
		Email: p.Email,
		Kind:  p.Kind,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer, audience and expiry and returns the payload.
// Expired tokens yield ErrTokenExpired; every other failure ErrTokenMalformed.
func (s *TokenService) Verify(token string) (Payload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Payload{}, ErrTokenMalformed
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrTokenExpired
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	p := Payload{ID: c.Subject, Email: c.Email, Kind: c.Kind, Role: c.Role}
	switch {
	case strings.TrimSpace(p.ID) == "":
		return Payload{}, fmt.Errorf("%w: subject missing", ErrTokenMalformed)
	case !p.Kind.Valid():
		return Payload{}, fmt.Errorf("%w: unknown type %q", ErrTokenMalformed, p.Kind)
	case p.Kind == model.KindUser && p.Role != "":
		return Payload{}, fmt.Errorf("%w: role on staff token", ErrTokenMalformed)
	case p.Kind == model.KindAdmin && p.Role != "" && !p.Role.Valid():
		return Payload{}, fmt.Errorf("%w: unknown role %q", ErrTokenMalformed, p.Role)
	}
	return p, nil
}
