package domain

import (
	"fmt"
	"time"
)

type JobState string

const (
	StateDelayed   JobState = "delayed"
	StateReady     JobState = "ready"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job is one unit of agent work. The ID is derived purely from
// (Action, EntityID, Version), so resubmitting an identical triple maps to
// the same Job. A higher Version for the same entity/action is a new Job;
// older jobs already queued keep running independently.
type Job struct {
	ID          string
	Action      string
	EntityID    string
	EntityType  string
	Version     int
	SubmittedBy string
	SubmittedAt time.Time
	Queue       string
	Priority    int
	State       JobState
	Attempt     int
	MaxAttempts int
	NotBefore   time.Time // zero means immediately eligible
	Metadata    Metadata
	AuditID     string
	LastError   string
}

// Validate checks the submission fields the gateway must reject
// synchronously. Metadata is validated separately at decode time.
func (j *Job) Validate() error {
	if j.Action == "" {
		return fmt.Errorf("action is required")
	}
	if j.EntityID == "" {
		return fmt.Errorf("entityId is required")
	}
	if j.Version < 1 {
		return fmt.Errorf("version must be a positive integer, got %d", j.Version)
	}
	if j.SubmittedBy == "" {
		return fmt.Errorf("submitting agent is required")
	}
	return nil
}
