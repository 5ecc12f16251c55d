package quota

import (
	"context"

	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/billing"
)

// Enforcer answers entitlement questions from the plan catalog and is
// the only legal path for consuming report quota.
type Enforcer struct {
	accounts account.Store
	catalog  billing.Catalog
}

// NewEnforcer creates a quota enforcer. Panics on missing dependencies
// to fail fast during initialization.
func NewEnforcer(accounts account.Store, catalog billing.Catalog) *Enforcer {
	if accounts == nil {
		panic("quota: account store is required")
	}
	if len(catalog) == 0 {
		panic("quota: plan catalog is required")
	}
	return &Enforcer{accounts: accounts, catalog: catalog}
}

// CanSubmit reports whether the account may submit another bug report
// right now. It does not consume quota; submission paths must go
// through Consume.
func (e *Enforcer) CanSubmit(ctx context.Context, accountID uuid.UUID) error {
	acc, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	return e.check(acc)
}

// Consume atomically re-checks the submission entitlement and counts
// one report against the quota. The re-check runs inside the same
// transaction as the increment, which closes the race between check
// and increment under concurrent submissions.
func (e *Enforcer) Consume(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return e.accounts.UpdateTx(ctx, accountID, func(a *account.Account) error {
		if err := e.check(a); err != nil {
			return err
		}
		a.IncrementReports()
		return nil
	})
}

// PlanFor returns the plan limits the account is entitled to.
func (e *Enforcer) PlanFor(acc *account.Account) billing.Plan {
	return e.catalog.For(acc.Plan)
}

// CheckAIAnalysis reports whether the account's plan includes AI bug
// analysis.
func (e *Enforcer) CheckAIAnalysis(acc *account.Account) error {
	if !e.catalog.For(acc.Plan).AIAnalysis {
		return ErrFeatureNotInPlan
	}
	return nil
}

// CheckAttachments validates an attachment batch against the plan's
// count and per-file size limits.
func (e *Enforcer) CheckAttachments(acc *account.Account, count int, maxSize int64) error {
	plan := e.catalog.For(acc.Plan)
	if count > plan.FileAttachments {
		return ErrAttachmentLimitReached
	}
	if maxSize > plan.MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func (e *Enforcer) check(acc *account.Account) error {
	switch acc.Status {
	case account.StatusActive, account.StatusTrialing:
	default:
		return ErrSubscriptionInactive
	}
	if !e.catalog.For(acc.Plan).AllowsReports(acc.ReportsThisMonth) {
		return ErrQuotaExceeded
	}
	return nil
}
