package domain

// Role is the closed set of account types. Authorization decisions are
// capability checks against this enumeration, never runtime inspection.
type Role string

const (
	RoleStandard  Role = "standard"
	RoleAffiliate Role = "affiliate"
	RolePartner   Role = "partner"
	RoleTeam      Role = "team"
	RoleAdmin     Role = "admin"
)

// AllRoles contains all valid roles
var AllRoles = []Role{RoleStandard, RoleAffiliate, RolePartner, RoleTeam, RoleAdmin}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleStandard, RoleAffiliate, RolePartner, RoleTeam, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// CanManageUsers reports whether the role may list and inspect other
// users' accounts.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAdmin, RoleTeam:
		return true
	}
	return false
}
