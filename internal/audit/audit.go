// Package audit records privileged administrator actions and expires them
// after a retention window. Writes are advisory: a failed write is logged and
// counted but never fails the action it documents.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/staffdir/internal/ids"
	"github.com/staffdir/internal/model"
)

const (
	DefaultRetentionDays = 90
	MaxRetentionDays     = 36500
	DefaultRecentLimit   = 100
	MaxActionLength      = 500

	writeTimeout = 5 * time.Second
)

// Origin is where a request came from, as best the gate could tell.
type Origin struct {
	IP        string
	UserAgent string
}

// Event describes one privileged action.
type Event struct {
	Admin       *model.Admin
	Action      string
	ActionType  model.ActionType
	TargetModel model.TargetModel
	TargetID    string
	Details     map[string]any
	Origin      Origin
}

type Store interface {
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
	RecentAudit(ctx context.Context, limit int, adminID string) ([]model.AuditEntry, error)
	AuditForTarget(ctx context.Context, target model.TargetModel, targetID string) ([]model.AuditEntry, error)
	DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Counter is the slice of prometheus.Counter the engine uses.
type Counter interface {
	Inc()
	Add(float64)
}

type Engine struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	failures Counter
	swept    Counter
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCounters wires the write-failure and swept-entry counters.
func WithCounters(failures, swept Counter) Option {
	return func(e *Engine) {
		e.failures = failures
		e.swept = swept
	}
}

func NewEngine(store Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		logger:   logger,
		now:      time.Now,
		failures: nopCounter{},
		swept:    nopCounter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var errInvalidEvent = errors.New("invalid audit event")

func validate(ev Event) error {
	switch {
	case ev.Admin == nil || ev.Admin.ID == "":
		return fmt.Errorf("%w: acting admin is required", errInvalidEvent)
	case strings.TrimSpace(ev.Action) == "":
		return fmt.Errorf("%w: action is required", errInvalidEvent)
	case utf8.RuneCountInString(ev.Action) > MaxActionLength:
		return fmt.Errorf("%w: action exceeds %d characters", errInvalidEvent, MaxActionLength)
	case !ev.ActionType.Valid():
		return fmt.Errorf("%w: unknown action type %q", errInvalidEvent, ev.ActionType)
	case !ev.TargetModel.Valid():
		return fmt.Errorf("%w: unknown target model %q", errInvalidEvent, ev.TargetModel)
	}
	return nil
}

// Record appends an entry for ev. It returns nil when the entry could not be
// written; the failure is logged and counted instead of returned.
func (e *Engine) Record(ctx context.Context, ev Event) *model.AuditEntry {
	if err := validate(ev); err != nil {
		e.fail(ev, err)
		return nil
	}

	now := e.now().UTC()
	entry := &model.AuditEntry{
		ID:            ids.At(now),
		AdminID:       ev.Admin.ID,
		AdminUsername: ev.Admin.Username,
		AdminEmail:    ev.Admin.Email,
		Action:        strings.TrimSpace(ev.Action),
		ActionType:    ev.ActionType,
		TargetModel:   ev.TargetModel,
		TargetID:      ev.TargetID,
		Details:       maps.Clone(ev.Details),
		IPAddress:     ev.Origin.IP,
		UserAgent:     ev.Origin.UserAgent,
		Timestamp:     now,
	}

	// The entry outlives a cancelled request.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := e.store.InsertAudit(wctx, entry); err != nil {
		e.fail(ev, err)
		return nil
	}
	return entry
}

func (e *Engine) fail(ev Event, err error) {
	e.failures.Inc()
	adminID := ""
	if ev.Admin != nil {
		adminID = ev.Admin.ID
	}
	e.logger.Error("audit: write failed",
		"err", err,
		"admin_id", adminID,
		"action_type", ev.ActionType,
		"target_model", ev.TargetModel,
		"target_id", ev.TargetID,
	)
}

// Recent lists the newest entries, optionally only those by adminID.
func (e *Engine) Recent(ctx context.Context, limit int, adminID string) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	entries, err := e.store.RecentAudit(ctx, limit, adminID)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	return entries, nil
}

// ForTarget lists every entry about one record, newest first. Entries remain
// after the record itself is deleted.
func (e *Engine) ForTarget(ctx context.Context, target model.TargetModel, targetID string) ([]model.AuditEntry, error) {
	entries, err := e.store.AuditForTarget(ctx, target, targetID)
	if err != nil {
		return nil, fmt.Errorf("audit: for target: %w", err)
	}
	return entries, nil
}

// SweepExpired deletes entries older than daysToKeep days and returns how many
// were removed. An entry exactly daysToKeep old is kept. Windows longer than
// MaxRetentionDays are treated as MaxRetentionDays.
func (e *Engine) SweepExpired(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	daysToKeep = min(daysToKeep, MaxRetentionDays)
	cutoff := e.now().UTC().AddDate(0, 0, -daysToKeep)
	n, err := e.store.DeleteAuditBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: sweep: %w", err)
	}
	e.swept.Add(float64(n))
	return n, nil
}

type nopCounter struct{}

func (nopCounter) Inc()        {}
func (nopCounter) Add(float64) {}
