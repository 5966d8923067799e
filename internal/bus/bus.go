// Package bus provides topic-based publish/subscribe fan-out for job
// lifecycle events. The memory implementation serves a single instance;
// the Redis implementation fans out across instances.
package bus

import (
	"context"
	"sync"
	"time"
)

// TopicJobs carries all job lifecycle events.
const TopicJobs = "jobs"

// Event types published by the worker pools and the gateway.
const (
	EventEnqueued  = "job.enqueued"
	EventStarted   = "job.started"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventRetried   = "job.retried"
	EventRerouted  = "job.rerouted"
	EventBlocked   = "job.blocked"
	EventCancelled = "job.cancelled"
)

// Event is one lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	Queue     string    `json:"queue"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Bus is the topic abstraction. Publish must never block job execution;
// slow subscribers lose events rather than stalling workers.
type Bus interface {
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe returns a receive channel and a cancel func that closes it.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
	Close() error
}

const subscriberBuffer = 64

// MemoryBus fans out over in-process channels.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Event
	nextID int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]chan Event)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop rather than block a worker.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Close may have already torn the subscription down.
			if _, ok := b.subs[topic][id]; !ok {
				return
			}
			delete(b.subs[topic], id)
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, topic)
	}
	return nil
}
