package account

import "errors"

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")

	// ErrAlreadyExists is returned when creating an account whose id or
	// email is already taken.
	ErrAlreadyExists = errors.New("account already exists")
)
