// Package core contains the HTTP error taxonomy and JSON response
// envelope shared by all API modules.
package core
