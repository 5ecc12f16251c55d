package statemachine

// State represents a named state in the state machine.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// Transition defines a state change triggered by an event.
type Transition struct {
	From  State
	To    State
	Event Event
}

// Chart is an immutable transition table for aggregates whose current
// state lives in storage rather than in memory. Callers load the row,
// ask the chart where the event leads from the persisted state, and
// write the result back in the same transaction. An event with no
// transition from the current state is not an error; the caller treats
// it as a no-op, which is what makes redelivered events safe to apply.
type Chart struct {
	// transitions is built once and never mutated, so lookups are safe
	// for concurrent use without locking.
	transitions map[State]map[Event]State
}

// NewChart builds a Chart from the given transitions.
// Registering two transitions for the same from/event pair returns
// ErrConflictingTransition since the outcome would be ambiguous.
func NewChart(transitions ...Transition) (*Chart, error) {
	c := &Chart{transitions: make(map[State]map[Event]State, len(transitions))}
	for _, t := range transitions {
		if t.From == "" || t.To == "" || t.Event == "" {
			return nil, ErrInvalidTransition
		}
		byEvent, ok := c.transitions[t.From]
		if !ok {
			byEvent = make(map[Event]State)
			c.transitions[t.From] = byEvent
		}
		if existing, ok := byEvent[t.Event]; ok && existing != t.To {
			return nil, ErrConflictingTransition
		}
		byEvent[t.Event] = t.To
	}
	return c, nil
}

// MustChart is like NewChart but panics on invalid definitions.
// Intended for package-level transition tables where a bad definition
// should prevent startup.
func MustChart(transitions ...Transition) *Chart {
	c, err := NewChart(transitions...)
	if err != nil {
		panic(err)
	}
	return c
}

// Next returns the state the event leads to from the given state.
// The second return value is false when no transition is defined.
func (c *Chart) Next(from State, event Event) (State, bool) {
	to, ok := c.transitions[from][event]
	return to, ok
}

// Can reports whether the event triggers any transition from the given state.
func (c *Chart) Can(from State, event Event) bool {
	_, ok := c.transitions[from][event]
	return ok
}
