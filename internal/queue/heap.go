package queue

import "github.com/hedgeco/agentkernel/internal/domain"

// readyItem orders the ready partition: higher priority first, then FIFO by
// submission sequence. An explicit priority promotes a job ahead of earlier
// lower-priority peers; equal priorities preserve submission order.
type readyItem struct {
	job *domain.Job
	seq uint64
}

type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(*readyItem)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func (h readyHeap) find(jobID string) int {
	for i, item := range h {
		if item.job.ID == jobID {
			return i
		}
	}
	return -1
}

// delayedItem orders the delayed partition by eligibility time.
type delayedItem struct {
	job *domain.Job
	seq uint64
}

type delayedHeap []*delayedItem

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool {
	if !h[i].job.NotBefore.Equal(h[j].job.NotBefore) {
		return h[i].job.NotBefore.Before(h[j].job.NotBefore)
	}
	return h[i].seq < h[j].seq
}

func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) { *h = append(*h, x.(*delayedItem)) }

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func (h delayedHeap) find(jobID string) int {
	for i, item := range h {
		if item.job.ID == jobID {
			return i
		}
	}
	return -1
}
