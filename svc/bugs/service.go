package bugs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/authz"
	"github.com/bugtrackerhq/entitlements/svc/quota"
)

// AttachmentMeta describes an uploaded file for plan-limit validation.
// Attachment storage itself lives outside this service.
type AttachmentMeta struct {
	Name string
	Size int64
}

// SubmitInput is a new bug report submission.
type SubmitInput struct {
	Title       string
	Description string
	Priority    Priority
	TeamID      *uuid.UUID
	Attachments []AttachmentMeta
	RequestAI   bool
}

// UpdateInput carries partial edits; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
}

// Service is the policy-gated, quota-enforced surface for bug reports.
// Every operation resolves the acting account and applies the
// authorization decision before touching the store.
type Service struct {
	accounts account.Store
	store    Store
	policy   *authz.Policy
	enforcer *quota.Enforcer
	log      *slog.Logger
}

// Option configures optional Service settings.
type Option func(*Service)

// WithLogger sets the structured logger. Panics on nil.
func WithLogger(log *slog.Logger) Option {
	if log == nil {
		panic("bugs: logger cannot be nil")
	}
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates the bug report service. Panics on missing
// dependencies to fail fast during initialization.
func NewService(accounts account.Store, store Store, policy *authz.Policy, enforcer *quota.Enforcer, opts ...Option) *Service {
	if accounts == nil {
		panic("bugs: account store is required")
	}
	if store == nil {
		panic("bugs: bug store is required")
	}
	if policy == nil {
		panic("bugs: authorization policy is required")
	}
	if enforcer == nil {
		panic("bugs: quota enforcer is required")
	}

	s := &Service{
		accounts: accounts,
		store:    store,
		policy:   policy,
		enforcer: enforcer,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the input against the actor's plan, consumes one
// unit of report quota, and persists the report. Validation runs before
// the quota is consumed so a rejected submission costs nothing.
func (s *Service) Submit(ctx context.Context, actorID uuid.UUID, in SubmitInput) (*Bug, error) {
	if in.Title == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if len(in.Attachments) > 0 {
		var largest int64
		for _, att := range in.Attachments {
			largest = max(largest, att.Size)
		}
		if err := s.enforcer.CheckAttachments(actor, len(in.Attachments), largest); err != nil {
			return nil, err
		}
	}
	if in.RequestAI {
		if err := s.enforcer.CheckAIAnalysis(actor); err != nil {
			return nil, err
		}
	}

	if _, err := s.enforcer.Consume(ctx, actorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bug := &Bug{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      StatusOpen,
		OwnerID:     actorID,
		TeamID:      in.TeamID,
		AIRequested: in.RequestAI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, bug); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "bug report submitted",
		slog.String("bug_id", bug.ID.String()),
		slog.String("owner_id", actorID.String()),
		slog.String("priority", string(bug.Priority)))
	return bug, nil
}

// Get returns a report the actor is allowed to view.
func (s *Service) Get(ctx context.Context, actorID, bugID uuid.UUID) (*Bug, error) {
	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	bug, err := s.store.Get(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireView(ctx, actor, bug.Resource()); err != nil {
		return nil, err
	}
	return bug, nil
}

// List returns the reports visible to the actor: everything for
// admins, owned reports for users, and owned plus led-team reports for
// team leads.
func (s *Service) List(ctx context.Context, actorID uuid.UUID) ([]*Bug, error) {
	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsAdmin() {
		return s.store.List(ctx, Filter{})
	}

	filter := Filter{OwnerID: &actorID}
	if actor.Role == account.RoleTeamLead {
		teams, err := s.policy.ViewableTeams(ctx, actor)
		if err != nil {
			return nil, err
		}
		filter.TeamIDs = teams
	}
	return s.store.List(ctx, filter)
}

// Update applies partial edits to a report the actor may edit.
func (s *Service) Update(ctx context.Context, actorID, bugID uuid.UUID, in UpdateInput) (*Bug, error) {
	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	bug, err := s.store.Get(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireEdit(ctx, actor, bug.Resource()); err != nil {
		return nil, err
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		bug.Title = *in.Title
	}
	if in.Description != nil {
		bug.Description = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *in.Priority)
		}
		bug.Priority = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
		}
		bug.Status = *in.Status
		if *in.Status == StatusResolved && bug.ResolvedAt == nil {
			now := time.Now().UTC()
			bug.ResolvedAt = &now
		}
	}

	if err := s.store.Update(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}

// Delete removes a report the actor may delete.
func (s *Service) Delete(ctx context.Context, actorID, bugID uuid.UUID) error {
	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return err
	}
	bug, err := s.store.Get(ctx, bugID)
	if err != nil {
		return err
	}
	if err := s.policy.RequireDelete(ctx, actor, bug.Resource()); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, bugID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "bug report deleted",
		slog.String("bug_id", bugID.String()),
		slog.String("actor_id", actorID.String()))
	return nil
}

// Assign sets the report's assignee. Only admins and team leads may
// assign; restricting assignees to the relevant team is left to the
// caller's team management.
func (s *Service) Assign(ctx context.Context, actorID, bugID, assigneeID uuid.UUID) (*Bug, error) {
	actor, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireAssign(ctx, actor); err != nil {
		return nil, err
	}

	bug, err := s.store.Get(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.Get(ctx, assigneeID); err != nil {
		return nil, err
	}
	if assigneeID != bug.OwnerID {
		if bug.TeamID == nil {
			return nil, ErrAssigneeNotOnTeam
		}
		ok, err := s.policy.MemberOf(ctx, assigneeID, *bug.TeamID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAssigneeNotOnTeam
		}
	}
	now := time.Now().UTC()
	bug.AssigneeID = &assigneeID
	bug.AssignedAt = &now
	if bug.Status == StatusOpen {
		bug.Status = StatusInProgress
	}

	if err := s.store.Update(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}
