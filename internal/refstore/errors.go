package refstore

import "errors"

var (
	// ErrInvalidSpan is returned when a caller-supplied span has negative or
	// inverted coordinates. Rejected rather than coerced: a corrupted span
	// would break the unique-position invariant downstream.
	ErrInvalidSpan = errors.New("invalid span")

	// ErrDuplicateTask is returned when an upsert would give two references
	// in one document the same task id.
	ErrDuplicateTask = errors.New("task already referenced in document")

	errEmptyURI = errors.New("document uri is empty")
)
