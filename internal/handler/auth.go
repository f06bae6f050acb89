package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/staffdir/internal/account"
	"github.com/staffdir/internal/audit"
	appmw "github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/model"
)

type accountService interface {
	Register(ctx context.Context, reg account.Registration) (*model.Staff, error)
	LoginStaff(ctx context.Context, email, password string) (*account.Session, error)
	LoginAdmin(ctx context.Context, username, password string, origin audit.Origin) (*account.Session, error)
	Logout(ctx context.Context, p *model.Principal, origin audit.Origin)
}

// AuthHandler handles registration, sign-in and sign-out for both principal
// kinds.
type AuthHandler struct {
	BaseHandler
	accounts      accountService
	secureCookies bool
}

func NewAuthHandler(base BaseHandler, accounts accountService, secureCookies bool) *AuthHandler {
	return &AuthHandler{BaseHandler: base, accounts: accounts, secureCookies: secureCookies}
}

// Register creates a pending staff account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg account.Registration
	if err := h.readJSON(w, r, &reg); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	st, err := h.accounts.Register(r.Context(), reg)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.writeJSONOrLog(w, r, http.StatusCreated, envelope{
		"success": true,
		"message": "Registration successful. Your account is pending admin approval.",
		"user": envelope{
			"id":         st.ID,
			"fullName":   st.FullName,
			"email":      st.Email,
			"staffId":    st.StaffID,
			"isVerified": st.IsVerified,
		},
	})
}

type staffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs a staff member in and sets the auth cookies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	sess, err := h.accounts.LoginStaff(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.setSessionCookies(w, sess)
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success": true,
		"message": "Login successful",
		"token":   sess.Token,
		"user":    sess.Principal.Staff,
	})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLogin signs an administrator in and sets the auth cookies.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	sess, err := h.accounts.LoginAdmin(r.Context(), req.Username, req.Password, appmw.Origin(r))
	if err != nil {
		h.errorFor(w, r, err)
		return
	}

	h.setSessionCookies(w, sess)
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{
		"success": true,
		"message": "Login successful",
		"token":   sess.Token,
		"admin":   sess.Principal.Admin,
	})
}

// Logout clears the auth cookies. Tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context(), appmw.PrincipalFromContext(r.Context()), appmw.Origin(r))

	for _, name := range []string{appmw.AuthCookieName, appmw.RoleCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == appmw.AuthCookieName,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
	h.writeJSONOrLog(w, r, http.StatusOK, envelope{"success": true, "message": "Logout successful"})
}

// Me reports who the caller is, if anyone.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := appmw.PrincipalFromContext(r.Context())
	if p == nil {
		h.writeJSONOrLog(w, r, http.StatusOK, envelope{"authenticated": false})
		return
	}

	env := envelope{"authenticated": true, "type": p.Kind, "role": p.RoleLabel()}
	if p.Kind == model.KindAdmin {
		env["admin"] = p.Admin
	} else {
		env["user"] = p.Staff
	}
	h.writeJSONOrLog(w, r, http.StatusOK, env)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, sess *account.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     appmw.AuthCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     appmw.RoleCookieName,
		Value:    sess.Principal.RoleLabel(),
		Path:     "/",
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
