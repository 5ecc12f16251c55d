// Package quota enforces per-plan usage limits on accounts. The report
// counter is only ever grown through Enforcer.Consume, which re-checks
// the entitlement inside the account row lock so concurrent
// submissions cannot overshoot the plan limit.
package quota
