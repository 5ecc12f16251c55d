package bugs

import (
	"time"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/svc/authz"
)

// Priority ranks how urgent a bug report is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether the priority is one of the known values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status tracks a bug report through its workflow.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Bug is a submitted bug report. TeamID and AssigneeID are nil when the
// report is unassigned.
type Bug struct {
	ID          uuid.UUID
	Title       string
	Description string
	Priority    Priority
	Status      Status
	OwnerID     uuid.UUID
	TeamID      *uuid.UUID
	AssigneeID  *uuid.UUID
	AIRequested bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AssignedAt  *time.Time
	ResolvedAt  *time.Time
}

// Resource returns the authorization view of the report.
func (b *Bug) Resource() authz.Resource {
	res := authz.Resource{OwnerID: b.OwnerID}
	if b.TeamID != nil {
		res.TeamID = *b.TeamID
	}
	return res
}
