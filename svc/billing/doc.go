// Package billing owns the subscription lifecycle for accounts: the
// plan catalog, checkout and portal sessions against the payment
// provider, and the webhook dispatcher that moves accounts between
// subscription states.
//
// The dispatcher is built for at-least-once delivery. Every event ID
// passes through a dedup ledger, every state transition is a no-op
// when its precondition does not hold, and monthly quota resets are
// keyed to the billing period so replays cannot grant extra quota.
package billing
