package model

import "time"

type ActionType string

const (
	ActionCreate  ActionType = "create"
	ActionUpdate  ActionType = "update"
	ActionDelete  ActionType = "delete"
	ActionLogin   ActionType = "login"
	ActionLogout  ActionType = "logout"
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionExport  ActionType = "export"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin,
		ActionLogout, ActionApprove, ActionReject, ActionExport:
		return true
	}
	return false
}

type TargetModel string

const (
	TargetUser   TargetModel = "User"
	TargetAdmin  TargetModel = "Admin"
	TargetSystem TargetModel = "System"
)

// Valid reports whether m is a known audit target.
func (m TargetModel) Valid() bool {
	return m == TargetUser || m == TargetAdmin || m == TargetSystem
}

// AuditEntry is an append-only record of a privileged action. Entries are
// never updated; they expire after the retention window.
type AuditEntry struct {
	ID            string         `json:"id"`
	AdminID       string         `json:"adminId"`
	AdminUsername string         `json:"adminUsername,omitempty"`
	AdminEmail    string         `json:"adminEmail,omitempty"`
	Action        string         `json:"action"`
	ActionType    ActionType     `json:"actionType"`
	TargetModel   TargetModel    `json:"targetModel"`
	TargetID      string         `json:"targetId,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
