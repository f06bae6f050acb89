package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staffdir/internal/model"
)

const auditSelect = `SELECT l.id, l.admin_id, COALESCE(a.username, ''), COALESCE(a.email, ''),
	l.action, l.action_type, l.target_model, l.target_id, l.details, l.ip_address,
	l.user_agent, l.created_at
	FROM audit_logs l LEFT JOIN admins a ON a.id = l.admin_id`

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("insert audit: encode details: %w", err)
		}
		details = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, admin_id, action, action_type, target_model, target_id,
			details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.AdminID, e.Action, string(e.ActionType), string(e.TargetModel), e.TargetID,
		details, e.IPAddress, e.UserAgent, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// RecentAudit lists the newest entries, optionally for one admin.
func (s *AuditStore) RecentAudit(ctx context.Context, limit int, adminID string) ([]model.AuditEntry, error) {
	if adminID != "" {
		return s.query(ctx, auditSelect+` WHERE l.admin_id = $2 ORDER BY l.created_at DESC, l.id DESC LIMIT $1`,
			limit, adminID)
	}
	return s.query(ctx, auditSelect+` ORDER BY l.created_at DESC, l.id DESC LIMIT $1`, limit)
}

func (s *AuditStore) AuditForTarget(ctx context.Context, target model.TargetModel, targetID string) ([]model.AuditEntry, error) {
	return s.query(ctx, auditSelect+` WHERE l.target_model = $1 AND l.target_id = $2 ORDER BY l.created_at DESC, l.id DESC`,
		string(target), targetID)
}

// DeleteAuditBefore removes entries strictly older than cutoff.
func (s *AuditStore) DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep audit: %w", err)
	}
	return n, nil
}

func (s *AuditStore) query(ctx context.Context, query string, args ...any) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e           model.AuditEntry
			actionType  string
			targetModel string
			details     []byte
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminUsername, &e.AdminEmail, &e.Action,
			&actionType, &targetModel, &e.TargetID, &details, &e.IPAddress, &e.UserAgent,
			&e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.ActionType = model.ActionType(actionType)
		e.TargetModel = model.TargetModel(targetModel)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
