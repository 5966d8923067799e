package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeco/agentkernel/internal/domain"
)

func newTestStore(t *testing.T, retention int) *MemoryStore {
	t.Helper()
	return NewMemoryStore([]string{"email", "approval"}, retention)
}

func testJob(id, queueName string) *domain.Job {
	return &domain.Job{
		ID:          id,
		Action:      "send_newsletter",
		EntityID:    "entity-" + id,
		Version:     1,
		SubmittedBy: "fred",
		Queue:       queueName,
		MaxAttempts: 3,
	}
}

func TestEnqueue_DeduplicatesOnJobID(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	first, err := s.Enqueue(ctx, testJob("job-1", "email"))
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	second, err := s.Enqueue(ctx, testJob("job-1", "email"))
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.Job.ID, second.Job.ID)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["email"].Waiting, "exactly one job despite two submissions")
}

func TestEnqueue_ConcurrentDuplicatesInsertOnce(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		s := newTestStore(t, 10)
		id := fmt.Sprintf("job-%d", round)

		const submitters = 8
		var wg sync.WaitGroup
		var inserted atomic.Int64
		errs := make([]error, submitters)
		start := make(chan struct{})
		for i := 0; i < submitters; i++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				<-start
				res, err := s.Enqueue(ctx, testJob(id, "email"))
				if err != nil {
					errs[slot] = err
					return
				}
				if res.Inserted {
					inserted.Add(1)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		require.Equal(t, int64(1), inserted.Load(), "same identity must insert exactly once")
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, stats["email"].Waiting)
	}
}

func TestEnqueue_UnknownQueue(t *testing.T) {
	s := newTestStore(t, 10)
	_, err := s.Enqueue(context.Background(), testJob("job-1", "nope"))
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestClaim_PriorityThenSubmissionOrder(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	low1 := testJob("low-1", "email")
	low2 := testJob("low-2", "email")
	high := testJob("high", "email")
	high.Priority = 5

	for _, j := range []*domain.Job{low1, low2, high} {
		_, err := s.Enqueue(ctx, j)
		require.NoError(t, err)
	}

	var order []string
	for i := 0; i < 3; i++ {
		job, err := s.Claim(ctx, "email")
		require.NoError(t, err)
		require.NotNil(t, job)
		order = append(order, job.ID)
		assert.Equal(t, domain.StateActive, job.State)
		assert.Equal(t, 1, job.Attempt)
	}
	assert.Equal(t, []string{"high", "low-1", "low-2"}, order)

	job, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	assert.Nil(t, job, "empty queue claims return nil, nil")
}

func TestClaim_DelayedJobNotEligibleUntilDue(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	j := testJob("delayed-1", "email")
	j.NotBefore = now.Add(time.Minute)
	_, err := s.Enqueue(ctx, j)
	require.NoError(t, err)

	job, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	assert.Nil(t, job, "delayed job must not be claimable before its time")

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	job, err = s.Claim(ctx, "email")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "delayed-1", job.ID)
}

func TestRequeue_ReturnsJobToDelayed(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Enqueue(ctx, testJob("retry-1", "email"))
	require.NoError(t, err)
	job, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.Requeue(ctx, job.ID, time.Minute, "boom"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDelayed, got.State)
	assert.Equal(t, "boom", got.LastError)
	assert.Equal(t, 1, got.Attempt, "attempt count survives the requeue")

	// Once due it is claimable again, with the attempt counter advancing.
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	again, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Attempt)
}

func TestReroute_MovesJobAndResetsAttempt(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, testJob("esc-1", "email"))
	require.NoError(t, err)
	job, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.Reroute(ctx, job.ID, "approval"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "approval", got.Queue)
	assert.Equal(t, domain.StateReady, got.State)
	assert.Equal(t, 0, got.Attempt)

	claimed, err := s.Claim(ctx, "approval")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "esc-1", claimed.ID)

	none, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	assert.Nil(t, none, "rerouted job must leave the original queue")
}

func TestCompleteAndFail_TerminalStates(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	for _, id := range []string{"ok-1", "bad-1"} {
		_, err := s.Enqueue(ctx, testJob(id, "email"))
		require.NoError(t, err)
	}

	a, _ := s.Claim(ctx, "email")
	b, _ := s.Claim(ctx, "email")
	require.NotNil(t, a)
	require.NotNil(t, b)

	require.NoError(t, s.Complete(ctx, "ok-1"))
	require.NoError(t, s.Fail(ctx, "bad-1", "handler exploded"))

	ok, err := s.Get(ctx, "ok-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, ok.State)

	bad, err := s.Get(ctx, "bad-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, bad.State)
	assert.Equal(t, "handler exploded", bad.LastError)

	stats, _ := s.Stats(ctx)
	assert.Equal(t, 1, stats["email"].Completed)
	assert.Equal(t, 1, stats["email"].Failed)
}

func TestComplete_NotActiveFails(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, testJob("waiting-1", "email"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Complete(ctx, "waiting-1"), ErrNotFound)
	assert.ErrorIs(t, s.Complete(ctx, "missing"), ErrNotFound)
}

func TestCancel_OnlyBeforeExecution(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	ready := testJob("ready-1", "email")
	delayed := testJob("delayed-1", "email")
	delayed.NotBefore = now.Add(time.Hour)
	running := testJob("running-1", "email")

	for _, j := range []*domain.Job{running, ready, delayed} {
		_, err := s.Enqueue(ctx, j)
		require.NoError(t, err)
	}
	claimed, err := s.Claim(ctx, "email")
	require.NoError(t, err)
	require.Equal(t, "running-1", claimed.ID)

	res, err := s.Cancel(ctx, "ready-1")
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, domain.StateCancelled, res.State)

	res, err = s.Cancel(ctx, "delayed-1")
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	res, err = s.Cancel(ctx, "running-1")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Cancelled, "active jobs must run to completion")
	assert.Equal(t, domain.StateActive, res.State)

	res, err = s.Cancel(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestRetention_EvictsOldestAndReopensDedup(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("job-%d", i)
		_, err := s.Enqueue(ctx, testJob(id, "email"))
		require.NoError(t, err)
		claimed, err := s.Claim(ctx, "email")
		require.NoError(t, err)
		require.Equal(t, id, claimed.ID)
		require.NoError(t, s.Complete(ctx, id))
	}

	stats, _ := s.Stats(ctx)
	assert.Equal(t, 2, stats["email"].Completed, "bucket bounded at retention")

	_, err := s.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound, "evicted job is gone")

	// Eviction ends the dedup window: the same ID may be submitted anew.
	res, err := s.Enqueue(ctx, testJob("job-1", "email"))
	require.NoError(t, err)
	assert.True(t, res.Inserted)
}

func TestQueues_IndependentPartitions(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	_, err := s.Enqueue(ctx, testJob("e-1", "email"))
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, testJob("a-1", "approval"))
	require.NoError(t, err)

	job, err := s.Claim(ctx, "approval")
	require.NoError(t, err)
	assert.Equal(t, "a-1", job.ID)

	stats, _ := s.Stats(ctx)
	assert.Equal(t, 1, stats["email"].Waiting)
	assert.Equal(t, 1, stats["approval"].Active)
}
