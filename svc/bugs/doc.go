// Package bugs implements bug report submission and management on top
// of the entitlement core: submissions consume report quota and every
// read or mutation passes through the authorization policy first.
package bugs
