package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")

	// ErrInvariantViolation marks an internal programming-contract breach,
	// such as a non-positive expected return reaching the sizer. It is kept
	// distinct from ordinary input errors so callers can tell a bug from bad
	// market data.
	ErrInvariantViolation = errors.New("internal invariant violated")

	// ErrStorePersist wraps a failed durable save. The in-memory position set
	// is preserved for retry on the next cycle.
	ErrStorePersist = errors.New("position store persist failed")
)
