package engine

import "errors"

var (
	// ErrLockContention means another invocation of the same task kind
	// holds the lease. The run was skipped; the next scheduled run
	// catches up.
	ErrLockContention = errors.New("task lock already held")

	// ErrInvariantViolation means post-sweep share conservation failed
	// or staged records disagreed with each other. The unit of work is
	// rolled back; durable state is unchanged.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrMalformedOrder means an order reached the engine violating a
	// precondition enforced at creation time (non-positive amount or
	// price).
	ErrMalformedOrder = errors.New("malformed order state")
)
