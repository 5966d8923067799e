package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_FanOut(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	ch1, cancel1, err := b.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := b.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, b.Publish(ctx, TopicJobs, Event{Type: EventEnqueued, JobID: "job-1"}))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventEnqueued, ev.Type)
			assert.Equal(t, "job-1", ev.JobID)
			assert.False(t, ev.Timestamp.IsZero(), "publish stamps missing timestamps")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestMemoryBus_TopicsAreIsolated(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, TopicJobs, Event{Type: EventStarted, JobID: "job-1"}))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	_, cancel, err := b.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)
	defer cancel()

	// Nobody drains; publishing past the buffer must still return.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, TopicJobs, Event{Type: EventRetried, JobID: "job-1"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMemoryBus_CancelStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")
	require.NoError(t, b.Publish(ctx, TopicJobs, Event{Type: EventFailed}))
}

func TestMemoryBus_CloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus()
	_, _, err := b.Subscribe(context.Background(), TopicJobs)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
