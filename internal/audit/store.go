package audit

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no entry with that ID exists.
	ErrNotFound = errors.New("audit entry not found")
	// ErrFinalized means Finalize was called on an already-finalized entry.
	ErrFinalized = errors.New("audit outcome already finalized")
)

// Store is the ledger abstraction. Implementations must support concurrent
// appends and detail merges from every worker without blocking readers.
// The store has an owned lifecycle: callers Close it on shutdown, and tests
// construct their own instance instead of sharing process-wide state.
type Store interface {
	// Append writes a new entry. The entry ID must be unique.
	Append(ctx context.Context, e Entry) error

	// MergeDetails folds extra keys into an entry's details map. Allowed
	// both before and after finalization.
	MergeDetails(ctx context.Context, id string, details map[string]any) error

	// Finalize sets the outcome exactly once. A second call returns
	// ErrFinalized.
	Finalize(ctx context.Context, id string, outcome Outcome) error

	// Query returns matching entries, newest-first, capped at
	// Filter.Limit (default 100).
	Query(ctx context.Context, f Filter) ([]Entry, error)

	// Replay returns every entry for jobID in ascending timestamp order.
	Replay(ctx context.Context, jobID string) (Replay, error)

	Close() error
}
