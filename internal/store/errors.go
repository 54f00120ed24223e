package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert or update violates one of the
	// schema's unique constraints (token key, keyword+locale, template
	// identity, token-prompt pair). Callers surface it as "already exists".
	ErrConflict = errors.New("already exists")
)
