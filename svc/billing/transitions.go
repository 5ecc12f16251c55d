package billing

import (
	"github.com/bugtrackerhq/entitlements/pkg/statemachine"
	"github.com/bugtrackerhq/entitlements/svc/account"
)

// Lifecycle triggers. Webhook events reuse their provider wire names;
// user-initiated actions get their own trigger names.
const (
	TriggerCheckoutCompleted   = statemachine.Event(EventCheckoutCompleted)
	TriggerInvoicePaid         = statemachine.Event(EventInvoicePaid)
	TriggerInvoiceFailed       = statemachine.Event(EventInvoiceFailed)
	TriggerSubscriptionDeleted = statemachine.Event(EventSubscriptionDeleted)

	TriggerCancelRequested     statemachine.Event = "subscription.cancel_requested"
	TriggerReactivateRequested statemachine.Event = "subscription.reactivate_requested"
)

const (
	stActive            = statemachine.State(account.StatusActive)
	stTrialing          = statemachine.State(account.StatusTrialing)
	stPastDue           = statemachine.State(account.StatusPastDue)
	stCancelAtPeriodEnd = statemachine.State(account.StatusCancelAtPeriodEnd)
	stCancelled         = statemachine.State(account.StatusCancelled)
)

// lifecycle encodes which subscription transitions are legal. Triggers
// fired from a state with no matching entry are no-ops, which is what
// makes at-least-once webhook delivery safe to replay.
var lifecycle = statemachine.MustChart(
	// A completed checkout activates the subscription from any state,
	// including a previously cancelled one.
	statemachine.Transition{From: stActive, Event: TriggerCheckoutCompleted, To: stActive},
	statemachine.Transition{From: stTrialing, Event: TriggerCheckoutCompleted, To: stActive},
	statemachine.Transition{From: stPastDue, Event: TriggerCheckoutCompleted, To: stActive},
	statemachine.Transition{From: stCancelAtPeriodEnd, Event: TriggerCheckoutCompleted, To: stActive},
	statemachine.Transition{From: stCancelled, Event: TriggerCheckoutCompleted, To: stActive},

	// A paid invoice recovers a past-due subscription and renews an
	// active one in place.
	statemachine.Transition{From: stPastDue, Event: TriggerInvoicePaid, To: stActive},
	statemachine.Transition{From: stActive, Event: TriggerInvoicePaid, To: stActive},

	// A failed payment only demotes a currently active subscription.
	statemachine.Transition{From: stActive, Event: TriggerInvoiceFailed, To: stPastDue},

	// Provider-side deletion terminates everything but an already
	// cancelled subscription.
	statemachine.Transition{From: stActive, Event: TriggerSubscriptionDeleted, To: stCancelled},
	statemachine.Transition{From: stTrialing, Event: TriggerSubscriptionDeleted, To: stCancelled},
	statemachine.Transition{From: stPastDue, Event: TriggerSubscriptionDeleted, To: stCancelled},
	statemachine.Transition{From: stCancelAtPeriodEnd, Event: TriggerSubscriptionDeleted, To: stCancelled},

	statemachine.Transition{From: stActive, Event: TriggerCancelRequested, To: stCancelAtPeriodEnd},
	statemachine.Transition{From: stCancelAtPeriodEnd, Event: TriggerReactivateRequested, To: stActive},
)

// nextStatus resolves the target status for a trigger fired from the
// given status. The second return is false when the trigger is a no-op.
func nextStatus(from account.Status, trigger statemachine.Event) (account.Status, bool) {
	to, ok := lifecycle.Next(statemachine.State(from), trigger)
	return account.Status(to), ok
}

// canTransition reports whether the trigger is legal from the status.
func canTransition(from account.Status, trigger statemachine.Event) bool {
	return lifecycle.Can(statemachine.State(from), trigger)
}
