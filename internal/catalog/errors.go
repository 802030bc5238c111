package catalog

import "errors"

var (
	// ErrNotFound indicates no catalog entry matches the kind and id.
	ErrNotFound = errors.New("catalog: entry not found")

	// ErrInvalidEntry indicates an entry without an id or kind.
	ErrInvalidEntry = errors.New("catalog: invalid entry")
)
