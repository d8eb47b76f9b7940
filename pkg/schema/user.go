// Package schema defines the data structures shared across the repairdesk
// services: identities, admin grants, audit entries and catalog records.
package schema

import (
	"strings"
	"time"
)

// SubjectID identifies the user behind an authenticated session.
// It is NOT an admin identifier; see AdminID.
type SubjectID string

// AdminID is the primary key of an admins row.
type AdminID string

// Subject is the identity derived from a validated session.
type Subject struct {
	ID    SubjectID `json:"id"`
	Email string    `json:"email"`
}

// UserRecord is a sign-in account. Authorization is granted separately
// through an AdminRecord linked by UserID.
type UserRecord struct {
	ID           SubjectID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is the authorization level of an admin. Roles are ordered:
// editor < admin < superadmin.
type Role string

const (
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Rank returns the position of the role in the ordering, or 0 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleEditor:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperadmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r grants at least the privileges of min.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Rank() >= min.Rank()
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// AdminRecord is an authorization grant linking a session subject to a role.
// At most one active record per UserID is treated as canonical.
type AdminRecord struct {
	ID        AdminID   `json:"id"`
	UserID    SubjectID `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
