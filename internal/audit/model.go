// Package audit implements the append-only ledger of every submission
// attempt and its eventual outcome.
package audit

import "time"

// Outcome is the finalized result of an audited action.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one ledger record. Entries are append-only: Details may keep
// growing by merge after finalization, but a finalized Outcome is never
// un-finalized.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	EntityID   string         `json:"entityId"`
	EntityType string         `json:"entityType"`
	JobID      string         `json:"jobId,omitempty"`
	Details    map[string]any `json:"details"`
	Outcome    Outcome        `json:"outcome"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
}

// Filter selects entries for Query. Zero values match everything; results
// are always newest-first, capped at Limit.
type Filter struct {
	Agent      string
	Action     string
	EntityID   string
	EntityType string
	Outcome    Outcome
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

func (f Filter) matches(e Entry) bool {
	if f.Agent != "" && e.Agent != f.Agent {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	return true
}

// Replay is the projection of every entry sharing one job ID, ascending by
// timestamp. FinalOutcome equals the last entry's outcome.
type Replay struct {
	JobID        string  `json:"jobId"`
	Entries      []Entry `json:"entries"`
	FinalOutcome Outcome `json:"finalOutcome"`
}
