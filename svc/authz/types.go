package authz

import "github.com/google/uuid"

// TeamRole is the role a member holds within a single team. It is
// distinct from the account-level role: an account-level team_lead only
// gets lead powers over teams where it holds a lead membership.
type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleLead   TeamRole = "lead"
	TeamRoleMember TeamRole = "member"
	TeamRoleViewer TeamRole = "viewer"
)

// Valid reports whether the role is one of the known team roles.
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleAdmin, TeamRoleLead, TeamRoleMember, TeamRoleViewer:
		return true
	}
	return false
}

// Membership grants an account a role within a team. Deactivated
// memberships stay on record but grant nothing.
type Membership struct {
	AccountID uuid.UUID
	TeamID    uuid.UUID
	Role      TeamRole
	Active    bool
}

// Resource carries the fields of a bug report the policy reads.
// TeamID is uuid.Nil for reports not assigned to a team.
type Resource struct {
	OwnerID uuid.UUID
	TeamID  uuid.UUID
}
