package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

// CanView decides read access: admins see everything, owners see their
// own reports, and team leads see reports assigned to a team they hold
// a lead membership on. Pure function, no side effects.
func CanView(actor *account.Account, memberships []Membership, res Resource) bool {
	if actor.Role.IsAdmin() {
		return true
	}
	if actor.ID == res.OwnerID {
		return true
	}
	return actor.Role == account.RoleTeamLead && leadsTeam(actor.ID, res.TeamID, memberships)
}

// CanEdit follows the same rule as CanView.
func CanEdit(actor *account.Account, memberships []Membership, res Resource) bool {
	return CanView(actor, memberships, res)
}

// CanDelete is stricter than CanEdit: team leads may edit reports in
// their teams but only admins and owners may delete them.
func CanDelete(actor *account.Account, res Resource) bool {
	return actor.Role.IsAdmin() || actor.ID == res.OwnerID
}

// CanAssign decides whether the actor may assign reports at all. It is
// not ownership-scoped; restricting assignment targets to a team's
// members is the caller's job.
func CanAssign(actor *account.Account) bool {
	return actor.Role.IsAdmin() || actor.Role == account.RoleTeamLead
}

func leadsTeam(actorID, teamID uuid.UUID, memberships []Membership) bool {
	if teamID == uuid.Nil {
		return false
	}
	for _, m := range memberships {
		if m.AccountID == actorID && m.TeamID == teamID && m.Role == TeamRoleLead && m.Active {
			return true
		}
	}
	return false
}

// MembershipSource provides the team memberships the policy reads.
// Memberships are read-only from this core's perspective; writes belong
// to team management.
type MembershipSource interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Membership, error)
}

// Policy binds the pure decision functions to a membership source and
// surfaces them as authorization checks returning ErrPermissionDenied.
type Policy struct {
	memberships MembershipSource
}

// NewPolicy creates a policy engine. Panics on a nil source to fail
// fast during initialization.
func NewPolicy(memberships MembershipSource) *Policy {
	if memberships == nil {
		panic("authz: membership source is required")
	}
	return &Policy{memberships: memberships}
}

// RequireView returns ErrPermissionDenied unless the actor may view the
// resource. Memberships are only fetched when the decision needs them.
func (p *Policy) RequireView(ctx context.Context, actor *account.Account, res Resource) error {
	if actor.Role.IsAdmin() || actor.ID == res.OwnerID {
		return nil
	}
	if actor.Role != account.RoleTeamLead || res.TeamID == uuid.Nil {
		return ErrPermissionDenied
	}
	memberships, err := p.memberships.ListByAccount(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !CanView(actor, memberships, res) {
		return ErrPermissionDenied
	}
	return nil
}

// RequireEdit follows the same rule as RequireView.
func (p *Policy) RequireEdit(ctx context.Context, actor *account.Account, res Resource) error {
	return p.RequireView(ctx, actor, res)
}

// RequireDelete returns ErrPermissionDenied unless the actor may delete
// the resource.
func (p *Policy) RequireDelete(_ context.Context, actor *account.Account, res Resource) error {
	if !CanDelete(actor, res) {
		return ErrPermissionDenied
	}
	return nil
}

// RequireAssign returns ErrPermissionDenied unless the actor may assign
// reports.
func (p *Policy) RequireAssign(_ context.Context, actor *account.Account) error {
	if !CanAssign(actor) {
		return ErrPermissionDenied
	}
	return nil
}

// MemberOf reports whether the account holds an active membership on
// the given team.
func (p *Policy) MemberOf(ctx context.Context, accountID, teamID uuid.UUID) (bool, error) {
	memberships, err := p.memberships.ListByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if m.TeamID == teamID && m.Active {
			return true, nil
		}
	}
	return false, nil
}

// ViewableTeams lists the teams the actor leads, for scoping list
// queries. Returns nil for actors without lead memberships.
func (p *Policy) ViewableTeams(ctx context.Context, actor *account.Account) ([]uuid.UUID, error) {
	if actor.Role != account.RoleTeamLead {
		return nil, nil
	}
	memberships, err := p.memberships.ListByAccount(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	var teams []uuid.UUID
	for _, m := range memberships {
		if m.Role == TeamRoleLead && m.Active {
			teams = append(teams, m.TeamID)
		}
	}
	return teams, nil
}
