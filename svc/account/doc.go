// Package account holds the entitlement aggregate: one row per user
// carrying plan, subscription status, monthly report quota, and the
// billing customer reference. All mutation goes through Store.UpdateTx
// so concurrent writers are linearized per account.
package account
