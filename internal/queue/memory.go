package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedgeco/agentkernel/internal/domain"
)

// MemoryStore is the in-process queue backend. The ID index has its own
// lock; each named queue owns an independent mutex so pools never contend
// with each other.
type MemoryStore struct {
	mu   sync.RWMutex // guards byID and byQueue membership
	byID map[string]*memQueue

	// enqMu serializes submissions so the dedup check and the insert are
	// atomic with respect to other submitters. Claim, Requeue, Complete,
	// Fail, and Cancel never take it, so pools stay uncontended.
	enqMu sync.Mutex

	queues    map[string]*memQueue
	names     []string
	retention int
	seq       atomic.Uint64
	now       func() time.Time
}

type memQueue struct {
	mu        sync.Mutex
	name      string
	delayed   delayedHeap
	ready     readyHeap
	active    map[string]*domain.Job
	completed []*domain.Job
	failed    []*domain.Job
	cancelled []*domain.Job
}

// NewMemoryStore creates a store with one independent queue per name.
// retention bounds each terminal bucket; oldest entries are evicted first.
func NewMemoryStore(names []string, retention int) *MemoryStore {
	if retention <= 0 {
		retention = 500
	}
	s := &MemoryStore{
		byID:      make(map[string]*memQueue),
		queues:    make(map[string]*memQueue, len(names)),
		names:     append([]string(nil), names...),
		retention: retention,
		now:       time.Now,
	}
	for _, n := range names {
		s.queues[n] = &memQueue{name: n, active: make(map[string]*domain.Job)}
	}
	return s
}

func (s *MemoryStore) Queues() []string { return append([]string(nil), s.names...) }

func (s *MemoryStore) queue(name string) (*memQueue, error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	return q, nil
}

func (s *MemoryStore) Enqueue(_ context.Context, job *domain.Job) (EnqueueResult, error) {
	q, err := s.queue(job.Queue)
	if err != nil {
		return EnqueueResult{}, err
	}

	s.enqMu.Lock()
	defer s.enqMu.Unlock()

	s.mu.RLock()
	owner, ok := s.byID[job.ID]
	s.mu.RUnlock()
	if ok {
		// With enqMu held no insert can be mid-flight, so a live index
		// entry always has a snapshot. A nil snapshot means the job was
		// evicted and the mapping is stale; reclaim it.
		if existing := owner.snapshot(job.ID); existing != nil {
			return EnqueueResult{Job: existing, Inserted: false}, nil
		}
		s.mu.Lock()
		if s.byID[job.ID] == owner {
			delete(s.byID, job.ID)
		}
		s.mu.Unlock()
	}

	stored := *job
	if stored.SubmittedAt.IsZero() {
		stored.SubmittedAt = s.now()
	}

	// Index and push under q.mu so readers that follow the index never
	// observe the job half-inserted.
	q.mu.Lock()
	defer q.mu.Unlock()
	s.mu.Lock()
	s.byID[job.ID] = q
	s.mu.Unlock()
	seq := s.seq.Add(1)
	if !stored.NotBefore.IsZero() && stored.NotBefore.After(s.now()) {
		stored.State = domain.StateDelayed
		heap.Push(&q.delayed, &delayedItem{job: &stored, seq: seq})
	} else {
		stored.State = domain.StateReady
		heap.Push(&q.ready, &readyItem{job: &stored, seq: seq})
	}
	out := stored
	return EnqueueResult{Job: &out, Inserted: true}, nil
}

func (s *MemoryStore) Claim(_ context.Context, queueName string) (*domain.Job, error) {
	q, err := s.queue(queueName)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteLocked(s.now())
	if q.ready.Len() == 0 {
		return nil, nil
	}
	item := heap.Pop(&q.ready).(*readyItem)
	job := item.job
	job.State = domain.StateActive
	job.Attempt++
	q.active[job.ID] = job
	out := *job
	return &out, nil
}

// promoteLocked moves delayed jobs whose scheduled time has elapsed into
// the ready partition. Caller holds q.mu.
func (q *memQueue) promoteLocked(now time.Time) {
	for q.delayed.Len() > 0 {
		head := q.delayed[0]
		if head.job.NotBefore.After(now) {
			return
		}
		heap.Pop(&q.delayed)
		head.job.State = domain.StateReady
		heap.Push(&q.ready, &readyItem{job: head.job, seq: head.seq})
	}
}

func (s *MemoryStore) Requeue(_ context.Context, jobID string, delay time.Duration, lastErr string) error {
	q, job, err := s.activeJob(jobID)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, jobID)
	job.State = domain.StateDelayed
	job.NotBefore = s.now().Add(delay)
	job.LastError = lastErr
	heap.Push(&q.delayed, &delayedItem{job: job, seq: s.seq.Add(1)})
	return nil
}

func (s *MemoryStore) Reroute(_ context.Context, jobID, newQueue string) error {
	dst, err := s.queue(newQueue)
	if err != nil {
		return err
	}
	src, job, err := s.activeJob(jobID)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	// Land the job on the new queue and repoint the index before removing
	// it from the old one, so the index always resolves to a live job.
	dst.mu.Lock()
	job.Queue = newQueue
	job.State = domain.StateReady
	// A rerouted job starts over on the new queue's pool.
	job.Attempt = 0
	heap.Push(&dst.ready, &readyItem{job: job, seq: s.seq.Add(1)})
	s.mu.Lock()
	s.byID[jobID] = dst
	s.mu.Unlock()
	dst.mu.Unlock()

	src.mu.Lock()
	delete(src.active, jobID)
	src.mu.Unlock()
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, jobID string) error {
	return s.finish(jobID, domain.StateCompleted, "")
}

func (s *MemoryStore) Fail(_ context.Context, jobID, lastErr string) error {
	return s.finish(jobID, domain.StateFailed, lastErr)
}

func (s *MemoryStore) finish(jobID string, state domain.JobState, lastErr string) error {
	q, job, err := s.activeJob(jobID)
	if err != nil {
		return err
	}
	q.mu.Lock()
	delete(q.active, jobID)
	job.State = state
	if lastErr != "" {
		job.LastError = lastErr
	}
	var evicted *domain.Job
	if state == domain.StateCompleted {
		q.completed, evicted = appendBounded(q.completed, job, s.retention)
	} else {
		q.failed, evicted = appendBounded(q.failed, job, s.retention)
	}
	q.mu.Unlock()

	if evicted != nil {
		s.mu.Lock()
		delete(s.byID, evicted.ID)
		s.mu.Unlock()
	}
	return nil
}

// appendBounded appends and evicts the oldest entry once the bucket exceeds
// its retention bound. Eviction also ends the dedup window for that job ID.
func appendBounded(bucket []*domain.Job, job *domain.Job, retention int) ([]*domain.Job, *domain.Job) {
	bucket = append(bucket, job)
	if len(bucket) <= retention {
		return bucket, nil
	}
	evicted := bucket[0]
	copy(bucket, bucket[1:])
	return bucket[:len(bucket)-1], evicted
}

func (s *MemoryStore) Cancel(_ context.Context, jobID string) (CancelResult, error) {
	s.mu.RLock()
	q, ok := s.byID[jobID]
	s.mu.RUnlock()
	if !ok {
		return CancelResult{}, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if idx := q.delayed.find(jobID); idx >= 0 {
		item := q.delayed[idx]
		heap.Remove(&q.delayed, idx)
		return q.cancelLocked(s, item.job), nil
	}
	if idx := q.ready.find(jobID); idx >= 0 {
		item := q.ready[idx]
		heap.Remove(&q.ready, idx)
		return q.cancelLocked(s, item.job), nil
	}
	if job, ok := q.active[jobID]; ok {
		// Executing jobs must be allowed to finish, fail, or retry.
		return CancelResult{Found: true, Cancelled: false, State: job.State}, nil
	}
	if job := q.terminalLocked(jobID); job != nil {
		return CancelResult{Found: true, Cancelled: false, State: job.State}, nil
	}
	return CancelResult{}, nil
}

func (q *memQueue) cancelLocked(s *MemoryStore, job *domain.Job) CancelResult {
	job.State = domain.StateCancelled
	var evicted *domain.Job
	q.cancelled, evicted = appendBounded(q.cancelled, job, s.retention)
	if evicted != nil {
		s.mu.Lock()
		delete(s.byID, evicted.ID)
		s.mu.Unlock()
	}
	return CancelResult{Found: true, Cancelled: true, State: domain.StateCancelled}
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	q, ok := s.byID[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	job := q.snapshot(jobID)
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) Stats(_ context.Context) (map[string]Stats, error) {
	out := make(map[string]Stats, len(s.names))
	now := s.now()
	for _, name := range s.names {
		q := s.queues[name]
		q.mu.Lock()
		q.promoteLocked(now)
		out[name] = Stats{
			Waiting:   q.ready.Len(),
			Active:    len(q.active),
			Completed: len(q.completed),
			Failed:    len(q.failed),
			Delayed:   q.delayed.Len(),
			Cancelled: len(q.cancelled),
		}
		q.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) activeJob(jobID string) (*memQueue, *domain.Job, error) {
	s.mu.RLock()
	q, ok := s.byID[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	q.mu.Lock()
	job, ok := q.active[jobID]
	q.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not active", ErrNotFound, jobID)
	}
	return q, job, nil
}

// snapshot copies a job from whichever partition holds it.
func (q *memQueue) snapshot(jobID string) *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.active[jobID]; ok {
		out := *job
		return &out
	}
	if idx := q.ready.find(jobID); idx >= 0 {
		out := *q.ready[idx].job
		return &out
	}
	if idx := q.delayed.find(jobID); idx >= 0 {
		out := *q.delayed[idx].job
		return &out
	}
	if job := q.terminalLocked(jobID); job != nil {
		out := *job
		return &out
	}
	return nil
}

func (q *memQueue) terminalLocked(jobID string) *domain.Job {
	for _, bucket := range [][]*domain.Job{q.completed, q.failed, q.cancelled} {
		for _, job := range bucket {
			if job.ID == jobID {
				return job
			}
		}
	}
	return nil
}
