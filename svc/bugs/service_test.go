package bugs_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/authz"
	"github.com/bugtrackerhq/entitlements/svc/billing"
	"github.com/bugtrackerhq/entitlements/svc/bugs"
	"github.com/bugtrackerhq/entitlements/svc/quota"
)

type fixture struct {
	accounts    *account.MemoryStore
	store       *bugs.MemoryStore
	memberships *authz.MemoryMembershipSource
	svc         *bugs.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := account.NewMemoryStore()
	store := bugs.NewMemoryStore()
	memberships := authz.NewMemoryMembershipSource()
	svc := bugs.NewService(accounts, store,
		authz.NewPolicy(memberships),
		quota.NewEnforcer(accounts, billing.DefaultCatalog()))
	return &fixture{accounts: accounts, store: store, memberships: memberships, svc: svc}
}

func (f *fixture) seedAccount(t *testing.T, email string, mutate func(a *account.Account)) *account.Account {
	t.Helper()
	acc := account.New(uuid.New(), email)
	if mutate != nil {
		mutate(acc)
	}
	require.NoError(t, f.accounts.Create(context.Background(), acc))
	return acc
}

func (f *fixture) submit(t *testing.T, ownerID uuid.UUID, in bugs.SubmitInput) *bugs.Bug {
	t.Helper()
	if in.Title == "" {
		in.Title = "crash on save"
	}
	if in.Description == "" {
		in.Description = "saving a draft crashes the app"
	}
	bug, err := f.svc.Submit(context.Background(), ownerID, in)
	require.NoError(t, err)
	return bug
}

func TestService_Submit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("persists the report and consumes quota", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.seedAccount(t, "owner@example.com", nil)

		bug := f.submit(t, owner.ID, bugs.SubmitInput{})
		assert.Equal(t, bugs.StatusOpen, bug.Status)
		assert.Equal(t, bugs.PriorityMedium, bug.Priority)
		assert.Equal(t, owner.ID, bug.OwnerID)

		acc, err := f.accounts.Get(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, acc.ReportsThisMonth)
	})

	t.Run("sixth freemium report is rejected without consuming", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.seedAccount(t, "owner@example.com", nil)

		for range 5 {
			f.submit(t, owner.ID, bugs.SubmitInput{})
		}
		_, err := f.svc.Submit(ctx, owner.ID, bugs.SubmitInput{
			Title: "one too many", Description: "over the limit",
		})
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)

		acc, err := f.accounts.Get(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, acc.ReportsThisMonth)

		all, err := f.store.List(ctx, bugs.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("validation failures cost no quota", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.seedAccount(t, "owner@example.com", nil)

		_, err := f.svc.Submit(ctx, owner.ID, bugs.SubmitInput{Title: "no description"})
		assert.ErrorIs(t, err, bugs.ErrInvalidInput)

		_, err = f.svc.Submit(ctx, owner.ID, bugs.SubmitInput{
			Title: "t", Description: "d", Priority: bugs.Priority("urgent"),
		})
		assert.ErrorIs(t, err, bugs.ErrInvalidInput)

		acc, err := f.accounts.Get(ctx, owner.ID)
		require.NoError(t, err)
		assert.Zero(t, acc.ReportsThisMonth)
	})

	t.Run("ai analysis is gated by plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		free := f.seedAccount(t, "free@example.com", nil)
		paid := f.seedAccount(t, "paid@example.com", func(a *account.Account) {
			a.Activate(account.PlanStandard, "cus_1", time.Now())
		})

		_, err := f.svc.Submit(ctx, free.ID, bugs.SubmitInput{
			Title: "t", Description: "d", RequestAI: true,
		})
		assert.ErrorIs(t, err, quota.ErrFeatureNotInPlan)

		bug := f.submit(t, paid.ID, bugs.SubmitInput{RequestAI: true})
		assert.True(t, bug.AIRequested)
	})

	t.Run("attachment limits are enforced per plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		free := f.seedAccount(t, "free@example.com", nil)

		_, err := f.svc.Submit(ctx, free.ID, bugs.SubmitInput{
			Title: "t", Description: "d",
			Attachments: []bugs.AttachmentMeta{
				{Name: "a.png", Size: 1 << 20},
				{Name: "b.png", Size: 1 << 20},
			},
		})
		assert.ErrorIs(t, err, quota.ErrAttachmentLimitReached)

		_, err = f.svc.Submit(ctx, free.ID, bugs.SubmitInput{
			Title: "t", Description: "d",
			Attachments: []bugs.AttachmentMeta{{Name: "huge.mov", Size: 50 << 20}},
		})
		assert.ErrorIs(t, err, quota.ErrFileTooLarge)
	})
}

func TestService_Get(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	teamID := uuid.New()

	owner := f.seedAccount(t, "owner@example.com", nil)
	stranger := f.seedAccount(t, "stranger@example.com", nil)
	admin := f.seedAccount(t, "admin@example.com", func(a *account.Account) {
		a.Role = account.RoleAdmin
	})
	lead := f.seedAccount(t, "lead@example.com", func(a *account.Account) {
		a.Role = account.RoleTeamLead
	})
	f.memberships.Add(authz.Membership{AccountID: lead.ID, TeamID: teamID, Role: authz.TeamRoleLead, Active: true})

	bug := f.submit(t, owner.ID, bugs.SubmitInput{TeamID: &teamID})

	got, err := f.svc.Get(ctx, owner.ID, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, bug.ID, got.ID)

	_, err = f.svc.Get(ctx, admin.ID, bug.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, lead.ID, bug.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, stranger.ID, bug.ID)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestService_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	teamID := uuid.New()

	alice := f.seedAccount(t, "alice@example.com", nil)
	bob := f.seedAccount(t, "bob@example.com", nil)
	admin := f.seedAccount(t, "admin@example.com", func(a *account.Account) {
		a.Role = account.RoleAdmin
	})
	lead := f.seedAccount(t, "lead@example.com", func(a *account.Account) {
		a.Role = account.RoleTeamLead
	})
	f.memberships.Add(authz.Membership{AccountID: lead.ID, TeamID: teamID, Role: authz.TeamRoleLead, Active: true})

	f.submit(t, alice.ID, bugs.SubmitInput{Title: "alice solo"})
	f.submit(t, alice.ID, bugs.SubmitInput{Title: "alice team", TeamID: &teamID})
	f.submit(t, bob.ID, bugs.SubmitInput{Title: "bob solo"})

	listTitles := func(actorID uuid.UUID) []string {
		all, err := f.svc.List(ctx, actorID)
		require.NoError(t, err)
		titles := make([]string, len(all))
		for i, b := range all {
			titles[i] = b.Title
		}
		return titles
	}

	assert.ElementsMatch(t, []string{"alice solo", "alice team", "bob solo"}, listTitles(admin.ID))
	assert.ElementsMatch(t, []string{"alice solo", "alice team"}, listTitles(alice.ID))
	assert.ElementsMatch(t, []string{"bob solo"}, listTitles(bob.ID))
	assert.ElementsMatch(t, []string{"alice team"}, listTitles(lead.ID))
}

func TestService_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	owner := f.seedAccount(t, "owner@example.com", nil)
	stranger := f.seedAccount(t, "stranger@example.com", nil)
	bug := f.submit(t, owner.ID, bugs.SubmitInput{})

	t.Run("owner can edit", func(t *testing.T) {
		status := bugs.StatusResolved
		got, err := f.svc.Update(ctx, owner.ID, bug.ID, bugs.UpdateInput{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, bugs.StatusResolved, got.Status)
		assert.NotNil(t, got.ResolvedAt)
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		title := "hijacked"
		_, err := f.svc.Update(ctx, stranger.ID, bug.ID, bugs.UpdateInput{Title: &title})
		assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	})
}

func TestService_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	teamID := uuid.New()
	owner := f.seedAccount(t, "owner@example.com", nil)
	lead := f.seedAccount(t, "lead@example.com", func(a *account.Account) {
		a.Role = account.RoleTeamLead
	})
	f.memberships.Add(authz.Membership{AccountID: lead.ID, TeamID: teamID, Role: authz.TeamRoleLead, Active: true})

	bug := f.submit(t, owner.ID, bugs.SubmitInput{TeamID: &teamID})

	// A team lead may edit reports in their team but not delete them.
	assert.ErrorIs(t, f.svc.Delete(ctx, lead.ID, bug.ID), authz.ErrPermissionDenied)

	require.NoError(t, f.svc.Delete(ctx, owner.ID, bug.ID))
	_, err := f.store.Get(ctx, bug.ID)
	assert.ErrorIs(t, err, bugs.ErrNotFound)
}

func TestService_Assign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	owner := f.seedAccount(t, "owner@example.com", nil)
	assignee := f.seedAccount(t, "dev@example.com", nil)
	outsider := f.seedAccount(t, "outsider@example.com", nil)
	lead := f.seedAccount(t, "lead@example.com", func(a *account.Account) {
		a.Role = account.RoleTeamLead
	})

	teamID := uuid.New()
	f.memberships.Add(authz.Membership{AccountID: lead.ID, TeamID: teamID, Role: authz.TeamRoleLead, Active: true})
	f.memberships.Add(authz.Membership{AccountID: assignee.ID, TeamID: teamID, Role: authz.TeamRoleMember, Active: true})

	bug := f.submit(t, owner.ID, bugs.SubmitInput{TeamID: &teamID})

	t.Run("plain users cannot assign, not even the owner", func(t *testing.T) {
		_, err := f.svc.Assign(ctx, owner.ID, bug.ID, assignee.ID)
		assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	})

	t.Run("assignee must belong to the report's team", func(t *testing.T) {
		_, err := f.svc.Assign(ctx, lead.ID, bug.ID, outsider.ID)
		assert.ErrorIs(t, err, bugs.ErrAssigneeNotOnTeam)
	})

	t.Run("a deactivated membership does not qualify the assignee", func(t *testing.T) {
		former := f.seedAccount(t, "former@example.com", nil)
		f.memberships.Add(authz.Membership{AccountID: former.ID, TeamID: teamID, Role: authz.TeamRoleMember, Active: false})
		_, err := f.svc.Assign(ctx, lead.ID, bug.ID, former.ID)
		assert.ErrorIs(t, err, bugs.ErrAssigneeNotOnTeam)
	})

	t.Run("team lead assigns and the report moves in progress", func(t *testing.T) {
		got, err := f.svc.Assign(ctx, lead.ID, bug.ID, assignee.ID)
		require.NoError(t, err)
		require.NotNil(t, got.AssigneeID)
		assert.Equal(t, assignee.ID, *got.AssigneeID)
		assert.Equal(t, bugs.StatusInProgress, got.Status)
		assert.NotNil(t, got.AssignedAt)
	})

	t.Run("a report without a team can only go back to its owner", func(t *testing.T) {
		solo := f.submit(t, owner.ID, bugs.SubmitInput{})
		_, err := f.svc.Assign(ctx, lead.ID, solo.ID, assignee.ID)
		assert.ErrorIs(t, err, bugs.ErrAssigneeNotOnTeam)

		got, err := f.svc.Assign(ctx, lead.ID, solo.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, *got.AssigneeID)
	})
}
