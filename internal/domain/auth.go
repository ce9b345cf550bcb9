package domain

// Role differentiates administrators from organization users.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleOrgUser Role = "ORG_USER"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOrgUser
}

// Identity is the verified claim attached to a request or a realtime connection.
// It is produced once at verification time and never mutated afterwards.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
	OrgID  *int64
}

// IsAdmin reports whether the identity carries the ADMIN role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
