package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/staffdir/internal/handler"
	"github.com/staffdir/internal/middleware"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Peer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(app.metrics.Instrument)

	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/api/health", handler.Health(app.repos.health))

	base := handler.BaseHandler{Logger: app.logger}
	authHandler := handler.NewAuthHandler(base, app.accounts, app.config.SecureCookies)
	staffHandler := handler.NewStaffHandler(base, app.repos.staff)
	adminStaffHandler := handler.NewAdminStaffHandler(base, app.repos.staff, app.approvals, app.audit)
	auditHandler := handler.NewAuditHandler(base, app.audit, app.config.AuditRetentionDays)
	analyticsHandler := handler.NewAnalyticsHandler(base, app.repos.staff)
	adminsHandler := handler.NewAdminsHandler(base, app.repos.admins, app.accounts, app.audit)

	// Credential endpoints share one per-IP budget
	limit := middleware.RateLimit(middleware.PerMinute(app.config.LoginRatePerMinute))
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/admin/auth/login", authHandler.AdminLogin)
	})

	// Public, personalised when signed in
	r.Group(func(r chi.Router) {
		r.Use(app.gate.OptionalAuthMW)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/staff/search", staffHandler.Search)
		r.Get("/api/staff/{slug}", staffHandler.Public)
	})

	// Staff self-service
	r.Group(func(r chi.Router) {
		r.Use(app.gate.RequireUserMW)
		r.Get("/api/staff/profile", staffHandler.Profile)
		r.Put("/api/staff/profile", staffHandler.UpdateProfile)
		r.Delete("/api/staff/profile", staffHandler.DeactivateProfile)
	})

	// Administrators
	r.Group(func(r chi.Router) {
		r.Use(app.gate.RequireAdminMW(false))
		r.Get("/api/admin/staff", adminStaffHandler.List)
		r.Patch("/api/admin/staff", adminStaffHandler.Decide)
		r.Get("/api/admin/staff/export", adminStaffHandler.Export)
		r.Put("/api/admin/staff/{id}", adminStaffHandler.Update)
		r.Delete("/api/admin/staff/{id}", adminStaffHandler.Deactivate)
		r.Get("/api/admin/analytics", analyticsHandler.Show)

		r.Get("/api/admin/logs", auditHandler.List)
		r.Get("/api/admin/logs/{model}/{id}", auditHandler.ForTarget)
	})

	// Super admin only
	r.Group(func(r chi.Router) {
		r.Use(app.gate.RequireSuperAdmin())
		r.Post("/api/admin/logs/sweep", auditHandler.Sweep)
		r.Get("/api/admin/admins", adminsHandler.List)
		r.Post("/api/admin/admins", adminsHandler.Create)
		r.Put("/api/admin/admins/{id}", adminsHandler.Update)
	})
	return r
}
