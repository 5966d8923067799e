package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// defaultQueryLimit caps Query results when the filter does not set one.
const defaultQueryLimit = 100

// MemoryStore is the in-process ledger backend. A single RWMutex over an
// append-only slice: writers append and patch in place, readers copy out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]*Entry
	byJob   map[string][]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*Entry),
		byJob: make(map[string][]*Entry),
	}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("audit entry requires an id")
	}
	if e.Outcome == "" {
		e.Outcome = OutcomePending
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("audit entry %s already exists", e.ID)
	}
	stored := e
	stored.Details = copyDetails(e.Details)
	s.entries = append(s.entries, &stored)
	s.byID[stored.ID] = &stored
	if stored.JobID != "" {
		s.byJob[stored.JobID] = append(s.byJob[stored.JobID], &stored)
	}
	return nil
}

func (s *MemoryStore) MergeDetails(_ context.Context, id string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return nil
}

func (s *MemoryStore) Finalize(_ context.Context, id string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if e.Outcome != OutcomePending {
		return ErrFinalized
	}
	e.Outcome = outcome
	return nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, limit)
	// entries is append-ordered; walk backwards for newest-first.
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if f.matches(*e) {
			out = append(out, snapshot(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) Replay(_ context.Context, jobID string) (Replay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.byJob[jobID]
	entries := make([]Entry, 0, len(refs))
	for _, e := range refs {
		entries = append(entries, snapshot(e))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	r := Replay{JobID: jobID, Entries: entries}
	if n := len(entries); n > 0 {
		r.FinalOutcome = entries[n-1].Outcome
	}
	return r, nil
}

func (s *MemoryStore) Close() error { return nil }

func snapshot(e *Entry) Entry {
	out := *e
	out.Details = copyDetails(e.Details)
	return out
}

func copyDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
