package account

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/auth"
	"github.com/staffdir/internal/ids"
	"github.com/staffdir/internal/model"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,50}$`)

type NewAdmin struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	FullName string     `json:"fullName"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

func (n *NewAdmin) validate() error {
	n.Username = strings.ToLower(strings.TrimSpace(n.Username))
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.FullName = strings.TrimSpace(n.FullName)
	if n.Role == "" {
		n.Role = model.RoleAdmin
	}

	fields := map[string]string{}
	if !usernamePattern.MatchString(n.Username) {
		fields["username"] = "Username must be 3-50 characters of letters, digits, dot, dash or underscore"
	}
	if !ValidEmail(n.Email) {
		fields["email"] = "Invalid email address"
	}
	if len(n.FullName) < 2 {
		fields["fullName"] = "Full name is required"
	}
	if !n.Role.Valid() {
		fields["role"] = "Role must be admin or super-admin"
	}
	if problems := auth.ValidatePasswordStrength(n.Password); len(problems) > 0 {
		fields["password"] = strings.Join(problems, "; ")
	}
	return apperr.Validation(fields)
}

// ProvisionAdmin creates an administrator account. When actor is non-nil the
// creation is recorded against them; the command-line tool passes nil.
func (s *Service) ProvisionAdmin(ctx context.Context, actor *model.Admin, n NewAdmin, origin audit.Origin) (*model.Admin, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.Hash(n.Password)
	if err != nil {
		return nil, fmt.Errorf("provision admin: %w", err)
	}

	now := s.now().UTC()
	a := &model.Admin{
		ID:        ids.At(now),
		Username:  n.Username,
		Email:     n.Email,
		FullName:  n.FullName,
		Role:      n.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.admins.CreateAdmin(ctx, a, hash); err != nil {
		return nil, fmt.Errorf("provision admin: %w", err)
	}

	if actor != nil {
		s.audit.Record(ctx, audit.Event{
			Admin:       actor,
			Action:      "Created " + string(a.Role) + " account " + a.Username,
			ActionType:  model.ActionCreate,
			TargetModel: model.TargetAdmin,
			TargetID:    a.ID,
			Details:     map[string]any{"username": a.Username, "email": a.Email, "role": a.Role},
			Origin:      origin,
		})
	}
	s.logger.Info("account: admin provisioned", "admin_id", a.ID, "username", a.Username, "role", a.Role)
	return a, nil
}
