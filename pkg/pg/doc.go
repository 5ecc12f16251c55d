// Package pg provides PostgreSQL connectivity helpers: a retrying pool
// constructor, goose migration runner, and error classification used by
// the stores in svc packages.
package pg
