// Package statemachine provides an immutable transition chart for
// validating state changes of persisted aggregates. Unlike an in-memory
// finite state machine it holds no current state; callers supply the
// state they loaded under a transaction and commit whatever the chart
// answers.
package statemachine
