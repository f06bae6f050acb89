package model

import (
	"regexp"
	"strings"
	"time"
)

// Staff is a self-registered staff member. Like Admin it carries no password
// hash.
type Staff struct {
	ID                string    `json:"id"`
	StaffID           string    `json:"staffId"`
	Email             string    `json:"email"`
	FullName          string    `json:"fullName"`
	Faculty           string    `json:"faculty"`
	Department        string    `json:"department"`
	Designation       string    `json:"designation"`
	OfficeAddress     string    `json:"officeAddress,omitempty"`
	ContactNumber     string    `json:"contactNumber,omitempty"`
	OfficeHours       string    `json:"officeHours,omitempty"`
	ResearchInterests string    `json:"researchInterests,omitempty"`
	Biography         string    `json:"biography,omitempty"`
	Education         string    `json:"education,omitempty"`
	Publications      string    `json:"publications,omitempty"`
	PhotoURL          string    `json:"photoUrl,omitempty"`
	IsVerified        bool      `json:"isVerified"`
	IsApproved        bool      `json:"isApproved"`
	IsActive          bool      `json:"isActive"`
	Slug              string    `json:"slug"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ApprovalState is derived from (IsApproved, IsActive); it is never stored.
type ApprovalState string

const (
	StatePending     ApprovalState = "pending"
	StateApproved    ApprovalState = "approved"
	StateRejected    ApprovalState = "rejected"
	StateDeactivated ApprovalState = "deactivated"
)

// StateOf returns the effective approval state. Rejected staff records are
// deleted, so a nil staff is reported as rejected.
func StateOf(s *Staff) ApprovalState {
	switch {
	case s == nil:
		return StateRejected
	case s.IsApproved && s.IsActive:
		return StateApproved
	case s.IsApproved:
		return StateDeactivated
	default:
		return StatePending
	}
}

var (
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify derives the public profile slug from a full name, suffixed with the
// staff identifier so that two staff members with the same name never collide.
func Slugify(fullName, staffID string) string {
	s := strings.ToLower(strings.TrimSpace(fullName))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if staffID != "" {
		s = s + "-" + strings.ToLower(staffID)
	}
	return s
}
