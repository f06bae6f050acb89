// Package account handles registration, sign-in for both principal kinds and
// administrator provisioning. Token issuance lives in auth; this package only
// decides who gets one.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/auth"
	"github.com/staffdir/internal/ids"
	"github.com/staffdir/internal/mailer"
	"github.com/staffdir/internal/model"
)

var (
	// ErrInvalidCredentials is the only answer for an unknown account or a
	// wrong password.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	ErrAccountInactive    = fmt.Errorf("account is inactive, please contact an administrator: %w", apperr.ErrForbidden)
	ErrPendingApproval    = fmt.Errorf("your registration is pending admin approval: %w", apperr.ErrForbidden)
)

type StaffStore interface {
	CreateStaff(ctx context.Context, st *model.Staff, passwordHash string) error
	StaffByEmail(ctx context.Context, email string) (*model.Staff, string, error)
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, a *model.Admin, passwordHash string) error
	AdminByUsername(ctx context.Context, username string) (*model.Admin, string, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type Issuer interface {
	Issue(p auth.Payload) (string, time.Time, error)
}

type Notifier interface {
	Send(to, subject, html, text string) bool
}

type Auditor interface {
	Record(ctx context.Context, ev audit.Event) *model.AuditEntry
}

// LoginCounter counts sign-in attempts by principal kind and outcome.
type LoginCounter interface {
	Inc(kind, outcome string)
}

type Service struct {
	staff      StaffStore
	admins     AdminStore
	tokens     Issuer
	notifier   Notifier
	audit      Auditor
	logins     LoginCounter
	adminEmail string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithAdminEmail sets the address notified about new registrations.
func WithAdminEmail(addr string) Option {
	return func(s *Service) { s.adminEmail = addr }
}

func WithLoginCounter(c LoginCounter) Option {
	return func(s *Service) { s.logins = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(staff StaffStore, admins AdminStore, tokens Issuer, notifier Notifier, auditor Auditor, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		staff:    staff,
		admins:   admins,
		tokens:   tokens,
		notifier: notifier,
		audit:    auditor,
		logins:   nopLogins{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is the outcome of a successful sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal model.Principal
}

type Registration struct {
	FullName          string `json:"fullName"`
	StaffID           string `json:"staffId"`
	Faculty           string `json:"faculty"`
	Department        string `json:"department"`
	Designation       string `json:"designation"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	OfficeAddress     string `json:"officeAddress"`
	ContactNumber     string `json:"contactNumber"`
	ResearchInterests string `json:"researchInterests"`
	Biography         string `json:"biography"`
}

func (r *Registration) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.StaffID = strings.ToUpper(strings.TrimSpace(r.StaffID))
	r.Faculty = strings.TrimSpace(r.Faculty)
	r.Department = strings.TrimSpace(r.Department)
	r.Designation = strings.TrimSpace(r.Designation)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.OfficeAddress = strings.TrimSpace(r.OfficeAddress)
	r.ContactNumber = strings.TrimSpace(r.ContactNumber)
	r.ResearchInterests = strings.TrimSpace(r.ResearchInterests)
	r.Biography = strings.TrimSpace(r.Biography)
}

func (r *Registration) validate() error {
	fields := map[string]string{}
	if n := len([]rune(r.FullName)); n < 2 || n > 100 {
		fields["fullName"] = "Name must be between 2 and 100 characters"
	}
	if len(r.StaffID) < 3 {
		fields["staffId"] = "Staff ID is required"
	}
	if len(r.Faculty) < 2 {
		fields["faculty"] = "Faculty is required"
	}
	if len(r.Department) < 2 {
		fields["department"] = "Department is required"
	}
	if len(r.Designation) < 2 {
		fields["designation"] = "Designation is required"
	}
	if !ValidEmail(r.Email) {
		fields["email"] = "Invalid email address"
	}
	if problems := auth.ValidatePasswordStrength(r.Password); len(problems) > 0 {
		fields["password"] = strings.Join(problems, "; ")
	}
	return apperr.Validation(fields)
}

// ValidEmail accepts a bare address such as jane@uni.edu.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

// Register creates a pending staff record and tells the administrators about
// it. Duplicate email or staff id surfaces as apperr.ErrConflict.
func (s *Service) Register(ctx context.Context, reg Registration) (*model.Staff, error) {
	reg.normalize()
	if err := reg.validate(); err != nil {
		return nil, err
	}

	hash, err := auth.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	st := &model.Staff{
		ID:                ids.At(now),
		StaffID:           reg.StaffID,
		Email:             reg.Email,
		FullName:          reg.FullName,
		Faculty:           reg.Faculty,
		Department:        reg.Department,
		Designation:       reg.Designation,
		OfficeAddress:     reg.OfficeAddress,
		ContactNumber:     reg.ContactNumber,
		ResearchInterests: reg.ResearchInterests,
		Biography:         reg.Biography,
		IsActive:          true,
		Slug:              model.Slugify(reg.FullName, reg.StaffID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.staff.CreateStaff(ctx, st, hash); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("account: registration received", "staff_id", st.ID, "email", st.Email)
	s.notifyAdmin(st)
	return st, nil
}

func (s *Service) notifyAdmin(st *model.Staff) {
	if s.adminEmail == "" {
		return
	}
	msg, err := mailer.NewRegistrationEmail(mailer.Recipient{FullName: st.FullName, StaffID: st.StaffID, Email: st.Email})
	if err != nil {
		s.logger.Error("account: render registration notice", "err", err)
		return
	}
	if !s.notifier.Send(s.adminEmail, msg.Subject, msg.HTML, msg.Text) {
		s.logger.Warn("account: registration notice not queued", "staff_id", st.ID)
	}
}

// LoginStaff checks a staff member's credentials. Account state is only
// revealed once the password has been verified.
func (s *Service) LoginStaff(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation(requiredFields(map[string]string{"email": email, "password": password}))
	}

	st, hash, err := s.staff.StaffByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		auth.VerifyMissing(password)
		s.logins.Inc(string(model.KindUser), "invalid")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.checkPassword(hash, password, model.KindUser, st.ID); err != nil {
		return nil, err
	}
	if !st.IsActive {
		s.logins.Inc(string(model.KindUser), "inactive")
		return nil, ErrAccountInactive
	}
	if !st.IsApproved {
		s.logins.Inc(string(model.KindUser), "pending")
		return nil, ErrPendingApproval
	}

	return s.issue(model.StaffPrincipal(st), auth.Payload{ID: st.ID, Email: st.Email, Kind: model.KindUser})
}

// LoginAdmin checks an administrator's credentials, stamps the last login
// time and records a login entry.
func (s *Service) LoginAdmin(ctx context.Context, username, password string, origin audit.Origin) (*Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, apperr.Validation(requiredFields(map[string]string{"username": username, "password": password}))
	}

	a, hash, err := s.admins.AdminByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		auth.VerifyMissing(password)
		s.logins.Inc(string(model.KindAdmin), "invalid")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("admin login: %w", err)
	}

	if err := s.checkPassword(hash, password, model.KindAdmin, a.ID); err != nil {
		return nil, err
	}
	// Suspended admins look exactly like unknown ones.
	if !a.IsActive {
		s.logins.Inc(string(model.KindAdmin), "inactive")
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.admins.TouchLastLogin(ctx, a.ID, now); err != nil {
		s.logger.Warn("account: failed to update last login", "err", err, "admin_id", a.ID)
	} else {
		a.LastLogin = &now
	}

	s.audit.Record(ctx, audit.Event{
		Admin:       a,
		Action:      "Admin " + a.Username + " logged in",
		ActionType:  model.ActionLogin,
		TargetModel: model.TargetAdmin,
		TargetID:    a.ID,
		Origin:      origin,
	})

	return s.issue(model.AdminPrincipal(a), auth.Payload{ID: a.ID, Email: a.Email, Kind: model.KindAdmin, Role: a.Role})
}

// Logout records a logout entry for administrators. Staff sign-outs leave no
// trace beyond the cleared cookie.
func (s *Service) Logout(ctx context.Context, p *model.Principal, origin audit.Origin) {
	if p == nil || p.Kind != model.KindAdmin {
		return
	}
	s.audit.Record(ctx, audit.Event{
		Admin:       p.Admin,
		Action:      "Admin " + p.Admin.Username + " logged out",
		ActionType:  model.ActionLogout,
		TargetModel: model.TargetAdmin,
		TargetID:    p.Admin.ID,
		Origin:      origin,
	})
}

func (s *Service) checkPassword(hash, password string, kind model.Kind, id string) error {
	ok, err := auth.Verify(hash, password)
	if err != nil {
		// A corrupt digest locks the account out; it must not become a 500.
		s.logger.Error("account: stored password hash unusable", "err", err, "kind", kind, "id", id)
	}
	if !ok {
		s.logins.Inc(string(kind), "invalid")
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) issue(p model.Principal, payload auth.Payload) (*Session, error) {
	token, exp, err := s.tokens.Issue(payload)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logins.Inc(string(p.Kind), "success")
	return &Session{Token: token, ExpiresAt: exp, Principal: p}, nil
}

func requiredFields(values map[string]string) map[string]string {
	fields := map[string]string{}
	for k, v := range values {
		if v == "" {
			fields[k] = "required"
		}
	}
	return fields
}

type nopLogins struct{}

func (nopLogins) Inc(string, string) {}
