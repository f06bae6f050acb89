package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/staffdir/internal/account"
	"github.com/staffdir/internal/approval"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/auth"
	"github.com/staffdir/internal/config"
	"github.com/staffdir/internal/db/migrations"
	"github.com/staffdir/internal/mailer"
	"github.com/staffdir/internal/metrics"
	"github.com/staffdir/internal/middleware"
	"github.com/staffdir/internal/store"
)

type App struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	repos     *repositories
	metrics   *metrics.Metrics
	tokens    *auth.TokenService
	gate      *middleware.Gate
	audit     *audit.Engine
	sweeper   *audit.Sweeper
	mailQueue *mailer.Queue
	accounts  *account.Service
	approvals *approval.Engine
}

func (app *App) Close() {
	if app.db != nil {
		app.db.Close()
	}
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

// NewWithConfig wires every component from cfg. An empty DatabaseURL selects
// the in-memory store.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	app := &App{config: cfg, logger: logger, metrics: metrics.New()}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		app.repos = memoryRepositories(store.NewMemory())
	} else {
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.db = db
		app.repos = postgresRepositories(db)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}
	app.tokens = tokens

	app.gate = middleware.NewGate(tokens, app.repos.staff, app.repos.admins, logger).
		WithCauseCounter(app.metrics.AuthCauses())

	app.audit = audit.NewEngine(app.repos.audit, logger,
		audit.WithCounters(app.metrics.AuditWriteFailures, app.metrics.AuditSwept))
	app.sweeper = audit.NewSweeper(app.audit, cfg.AuditRetentionDays, cfg.AuditSweepInterval, logger)

	m := mailer.New(&mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FromAddress: cfg.SMTPFromEmail,
		FromName:    cfg.SMTPFromName,
	})
	if !m.Configured() {
		logger.Warn("SMTP not configured, notification emails will be dropped")
	}
	app.mailQueue = mailer.NewQueue(m, logger, 2*time.Second, 100, 3).WithOutcome(app.metrics.MailOutcome())

	app.accounts = account.NewService(app.repos.staff, app.repos.admins, tokens, app.mailQueue, app.audit, logger,
		account.WithAdminEmail(cfg.AdminEmail),
		account.WithLoginCounter(app.metrics.LoginOutcome()))
	app.approvals = approval.NewEngine(app.repos.staff, app.mailQueue, app.audit, logger)

	auth.SeedFirstAdmin(ctx, app.repos.admins, auth.SeedAccount{
		Username: cfg.SeedAdminUsername,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
	}, logger)

	return app, nil
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.sweeper.Run(gctx)
	})

	g.Go(func() error {
		return app.mailQueue.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or a failed sibling

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(15 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(db); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// NewMigrator builds a migrate instance over the embedded SQL files.
func NewMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}

	dbDriver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
}

// RunMigrations applies every pending up migration.
func RunMigrations(db *sql.DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	return m.Up()
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
