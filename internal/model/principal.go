package model

// Kind discriminates the two principal variants. The string values travel
// inside session tokens.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

// Valid reports whether k names a known principal kind.
func (k Kind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// Principal is an authenticated identity: exactly one of Staff or Admin is set,
// matching Kind.
type Principal struct {
	Kind  Kind
	Staff *Staff
	Admin *Admin
}

// StaffPrincipal wraps a staff member as a principal.
func StaffPrincipal(s *Staff) Principal {
	return Principal{Kind: KindUser, Staff: s}
}

// AdminPrincipal wraps an administrator as a principal.
func AdminPrincipal(a *Admin) Principal {
	return Principal{Kind: KindAdmin, Admin: a}
}

// ID returns the record id of the underlying variant.
func (p Principal) ID() string {
	switch p.Kind {
	case KindUser:
		if p.Staff != nil {
			return p.Staff.ID
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.ID
		}
	}
	return ""
}

// Email returns the registered email of the underlying variant.
func (p Principal) Email() string {
	switch p.Kind {
	case KindUser:
		if p.Staff != nil {
			return p.Staff.Email
		}
	case KindAdmin:
		if p.Admin != nil {
			return p.Admin.Email
		}
	}
	return ""
}

// Active reports whether the underlying account is active.
func (p Principal) Active() bool {
	switch p.Kind {
	case KindUser:
		return p.Staff != nil && p.Staff.IsActive
	case KindAdmin:
		return p.Admin != nil && p.Admin.IsActive
	}
	return false
}

// RoleLabel is the coarse, non-sensitive label placed in the user_role cookie
// for client-side redirects. It is never read back for authorization.
func (p Principal) RoleLabel() string {
	switch p.Kind {
	case KindAdmin:
		if p.Admin != nil {
			return string(p.Admin.Role)
		}
		return string(RoleAdmin)
	case KindUser:
		return "staff"
	}
	return ""
}
