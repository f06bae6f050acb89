package model

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether r is one of the two administrator tiers.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Admin is an administrator account. The password hash is never part of this
// type; stores hand it out separately to the login path only.
type Admin struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName,omitempty"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsSuperAdmin reports whether the admin holds the super-admin role.
func (a *Admin) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}
