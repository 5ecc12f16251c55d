// Package authz decides who may do what with bug reports. The decision
// functions are pure reads over the actor's role, their team
// memberships, and the report's owner and team; they never mutate
// state. Callers apply the decision before mutating a report.
package authz
