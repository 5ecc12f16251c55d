package account

import (
	"time"

	"github.com/google/uuid"
)

// Role is the account-level role. Admin capability is derived from the
// role value; there is deliberately no separate is_admin flag to drift
// out of sync with it.
type Role string

const (
	RoleUser     Role = "user"
	RoleTeamLead Role = "team_lead"
	RoleAdmin    Role = "admin"
)

// IsAdmin reports whether the role grants full administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTeamLead, RoleAdmin:
		return true
	}
	return false
}

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFreemium Plan = "freemium"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// Valid reports whether the plan is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFreemium, PlanStandard, PlanPremium:
		return true
	}
	return false
}

// Status is the subscription status of an account.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCancelAtPeriodEnd Status = "cancel_at_period_end"
	StatusCancelled         Status = "cancelled"
)

// Account is the entitlement-bearing record for one user: which plan
// they hold, whether it is paid for, and how much of the monthly report
// quota they have consumed. It is mutated only through Store.UpdateTx so
// concurrent webhook deliveries and user actions are linearized per
// account.
type Account struct {
	ID    uuid.UUID
	Email string
	Role  Role

	Plan   Plan
	Status Status

	// PeriodEnd is set only while status is cancel_at_period_end and
	// records when paid access runs out.
	PeriodEnd *time.Time

	// BillingCustomerID is the provider's customer reference. Once set
	// it never changes, even across cancellation, so a returning
	// subscriber keeps their billing history.
	BillingCustomerID string

	// ReportsThisMonth counts reports submitted in the current billing
	// cycle. Grown only via the quota enforcer.
	ReportsThisMonth int

	// QuotaPeriodStart marks the billing period for which the quota was
	// last reset. Renewal events redelivered for the same period must
	// not re-zero a partially consumed quota.
	QuotaPeriodStart *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a freshly registered account on the freemium plan.
func New(id uuid.UUID, email string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Email:     email,
		Role:      RoleUser,
		Plan:      PlanFreemium,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin reports whether the account has administrative access.
func (a *Account) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// Activate puts the account on the given plan with a fresh quota.
// The customer reference is recorded only if none is set yet, and the
// quota is reset at most once per billing period so a redelivered
// activation event cannot hand out a second helping of quota.
func (a *Account) Activate(plan Plan, customerRef string, periodStart time.Time) {
	a.Plan = plan
	a.Status = StatusActive
	a.PeriodEnd = nil
	if a.BillingCustomerID == "" {
		a.BillingCustomerID = customerRef
	}
	if !a.QuotaResetAppliedFor(periodStart) {
		a.ResetMonthlyQuota(periodStart)
	}
}

// Reactivate resumes an active subscription without touching the quota.
func (a *Account) Reactivate() {
	a.Status = StatusActive
	a.PeriodEnd = nil
}

// MarkPastDue flags a failed payment. Legality of the transition is the
// caller's concern (see the billing transition chart).
func (a *Account) MarkPastDue() {
	a.Status = StatusPastDue
}

// ScheduleCancelAtPeriodEnd keeps paid access until the given date.
func (a *Account) ScheduleCancelAtPeriodEnd(end time.Time) {
	a.Status = StatusCancelAtPeriodEnd
	a.PeriodEnd = &end
}

// CancelImmediately drops the account to freemium. The billing customer
// reference is retained for re-subscription; the consumed quota is
// unchanged so cancelling is never a way to refresh it.
func (a *Account) CancelImmediately() {
	a.Status = StatusCancelled
	a.Plan = PlanFreemium
	a.PeriodEnd = nil
}

// ResetMonthlyQuota zeroes the report counter for a new billing period.
func (a *Account) ResetMonthlyQuota(periodStart time.Time) {
	a.ReportsThisMonth = 0
	ps := periodStart.UTC()
	a.QuotaPeriodStart = &ps
}

// QuotaResetAppliedFor reports whether the quota was already reset for
// the billing period starting at periodStart.
func (a *Account) QuotaResetAppliedFor(periodStart time.Time) bool {
	return a.QuotaPeriodStart != nil && a.QuotaPeriodStart.Equal(periodStart.UTC())
}

// IncrementReports grows the monthly counter by one. Callers must hold
// the row lock and have re-checked the quota; see svc/quota.
func (a *Account) IncrementReports() {
	a.ReportsThisMonth++
}
