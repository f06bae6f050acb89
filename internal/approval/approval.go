// Package approval drives the staff registration lifecycle. A registration
// starts pending and is either approved or rejected exactly once; rejection
// deletes the record.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/audit"
	"github.com/staffdir/internal/mailer"
	"github.com/staffdir/internal/model"
)

type Store interface {
	StaffByID(ctx context.Context, id string) (*model.Staff, error)
	ApproveStaff(ctx context.Context, id string, at time.Time) (*model.Staff, error)
	DeletePendingStaff(ctx context.Context, id string) error
}

// Notifier queues an email. A false result is logged, never returned.
type Notifier interface {
	Send(to, subject, html, text string) bool
}

type Auditor interface {
	Record(ctx context.Context, ev audit.Event) *model.AuditEntry
}

type Engine struct {
	store    Store
	notifier Notifier
	audit    Auditor
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(store Store, notifier Notifier, auditor Auditor, logger *slog.Logger) *Engine {
	return &Engine{store: store, notifier: notifier, audit: auditor, logger: logger, now: time.Now}
}

// Approve marks a pending registration approved and verified, notifies the
// staff member and records an approve entry. Approving a record that is
// already approved yields apperr.ErrInvalidState and sends nothing.
func (e *Engine) Approve(ctx context.Context, actor *model.Admin, staffID string, origin audit.Origin) (*model.Staff, error) {
	if actor == nil {
		return nil, fmt.Errorf("approve: %w", apperr.ErrUnauthorized)
	}

	staff, err := e.store.ApproveStaff(ctx, staffID, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("approve: %w", err)
	}

	e.notify(staff, mailer.ApprovalEmail)
	e.audit.Record(ctx, audit.Event{
		Admin:       actor,
		Action:      "Approved staff registration for " + staff.FullName,
		ActionType:  model.ActionApprove,
		TargetModel: model.TargetUser,
		TargetID:    staff.ID,
		Origin:      origin,
	})
	return staff, nil
}

// Reject notifies the applicant, deletes the pending record and records a
// reject entry that keeps a snapshot of who was rejected. Only pending records
// can be rejected: an approved record yields apperr.ErrInvalidState and must
// be deactivated instead.
func (e *Engine) Reject(ctx context.Context, actor *model.Admin, staffID string, origin audit.Origin) error {
	if actor == nil {
		return fmt.Errorf("reject: %w", apperr.ErrUnauthorized)
	}

	staff, err := e.store.StaffByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("reject: %w", err)
	}
	if staff.IsApproved {
		return fmt.Errorf("reject: registration already approved: %w", apperr.ErrInvalidState)
	}

	// The address is gone once the record is deleted.
	e.notify(staff, mailer.RejectionEmail)

	if err := e.store.DeletePendingStaff(ctx, staff.ID); err != nil {
		return fmt.Errorf("reject: %w", err)
	}

	e.audit.Record(ctx, audit.Event{
		Admin:       actor,
		Action:      "Rejected staff registration for " + staff.FullName,
		ActionType:  model.ActionReject,
		TargetModel: model.TargetUser,
		TargetID:    staff.ID,
		Details: map[string]any{
			"fullName": staff.FullName,
			"staffId":  staff.StaffID,
			"email":    staff.Email,
		},
		Origin: origin,
	})
	return nil
}

func (e *Engine) notify(staff *model.Staff, build func(mailer.Recipient) (mailer.Rendered, error)) {
	msg, err := build(mailer.Recipient{FullName: staff.FullName, StaffID: staff.StaffID, Email: staff.Email})
	if err != nil {
		e.logger.Error("approval: render notification", "err", err, "staff_id", staff.ID)
		return
	}
	if !e.notifier.Send(staff.Email, msg.Subject, msg.HTML, msg.Text) {
		e.logger.Warn("approval: notification not queued", "staff_id", staff.ID, "subject", msg.Subject)
	}
}
