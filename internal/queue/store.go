// Package queue implements the durable queue store: one independent ordered
// collection per named queue, with delayed, ready, and terminal partitions.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hedgeco/agentkernel/internal/domain"
)

var (
	// ErrNotFound means no job with that ID exists in the store.
	ErrNotFound = errors.New("job not found")
	// ErrUnknownQueue means the queue name was never configured.
	ErrUnknownQueue = errors.New("unknown queue")
)

// EnqueueResult is returned by Enqueue. Inserted is false when the job ID
// already existed; the existing job is returned unchanged.
type EnqueueResult struct {
	Job      *domain.Job
	Inserted bool
}

// CancelResult reports whether the job was found and whether cancellation
// took effect. Jobs already executing or terminal cannot be cancelled.
type CancelResult struct {
	Found     bool
	Cancelled bool
	State     domain.JobState
}

// Stats holds per-queue job counts.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
	Cancelled int `json:"cancelled"`
}

// Store is the durable queue abstraction. The memory implementation is the
// single-process backend; the semantics (dedup on job ID, priority then
// submission order, delayed eligibility, terminal retention) are the
// contract any persistent backend must keep.
type Store interface {
	// Enqueue adds a job, deduplicating on Job.ID. Resubmitting an
	// identical identity triple is a no-op that returns the existing job.
	Enqueue(ctx context.Context, job *domain.Job) (EnqueueResult, error)

	// Claim pops the next ready job from queueName, moving it to active
	// and bumping its attempt counter. Returns nil, nil when no job is
	// ready (normal idle state).
	Claim(ctx context.Context, queueName string) (*domain.Job, error)

	// Requeue returns an active job to the delayed partition for a retry
	// after the backoff delay elapses.
	Requeue(ctx context.Context, jobID string, delay time.Duration, lastErr string) error

	// Reroute moves a claimed job onto a different queue's ready
	// partition, used when the safe-send gate overrides the router.
	Reroute(ctx context.Context, jobID, newQueue string) error

	// Complete and Fail move an active job to its terminal bucket.
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, lastErr string) error

	// Cancel stops a delayed or ready job before it ever runs. Active and
	// terminal jobs are left untouched.
	Cancel(ctx context.Context, jobID string) (CancelResult, error)

	// Get returns a copy of the job.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// Stats returns per-queue counts.
	Stats(ctx context.Context) (map[string]Stats, error)

	// Queues lists the configured queue names.
	Queues() []string
}
