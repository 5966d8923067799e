package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hedgeco/agentkernel/internal/agent"
	"github.com/hedgeco/agentkernel/internal/audit"
	"github.com/hedgeco/agentkernel/internal/bus"
	"github.com/hedgeco/agentkernel/internal/domain"
	"github.com/hedgeco/agentkernel/internal/identity"
	"github.com/hedgeco/agentkernel/internal/policy"
	"github.com/hedgeco/agentkernel/internal/router"
)

// ActionRequest is the POST /action body.
type ActionRequest struct {
	Agent      string          `json:"agent"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entityId"`
	EntityType string          `json:"entityType,omitempty"`
	Version    int             `json:"version,omitempty"`
	Priority   int             `json:"priority,omitempty"`
	DelayMs    int             `json:"delayMs,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Evidence   []string        `json:"evidence,omitempty"`
}

// ActionResponse is returned for every accepted submission. The API is
// fire-and-forget: a jobId comes back immediately and callers poll the
// audit trail or queue stats for the terminal outcome.
type ActionResponse struct {
	JobID               string     `json:"jobId,omitempty"`
	Status              string     `json:"status"`
	Message             string     `json:"message"`
	Queue               string     `json:"queue,omitempty"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion,omitempty"`
}

const (
	statusQueued           = "queued"
	statusRequiresApproval = "requires_approval"
	statusBlocked          = "blocked"
	statusError            = "error"
)

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := bearerToken(r)
	declared := r.Header.Get("X-Agent")

	if token == "" || declared == "" {
		s.auditRejection(r, declared, "", "authentication", "missing credential or agent header")
		s.Metrics.SubmitRejected.WithLabelValues("authentication").Inc()
		writeError(w, http.StatusUnauthorized, "missing Authorization bearer token or X-Agent header")
		return
	}

	if err := s.Auth.Authenticate(token, declared); err != nil {
		status := http.StatusForbidden
		reason := "authorization"
		if errors.Is(err, agent.ErrMissingCredential) {
			status = http.StatusUnauthorized
			reason = "authentication"
		}
		s.auditRejection(r, declared, "", reason, err.Error())
		s.Metrics.SubmitRejected.WithLabelValues(reason).Inc()
		writeError(w, status, err.Error())
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.auditRejection(r, declared, "", "validation", "malformed JSON body")
		s.Metrics.SubmitRejected.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Agent != "" && req.Agent != declared {
		s.auditRejection(r, declared, req.Action, "authorization", "body agent does not match header")
		s.Metrics.SubmitRejected.WithLabelValues("authorization").Inc()
		writeError(w, http.StatusForbidden, "body agent does not match X-Agent header")
		return
	}
	if req.Version == 0 {
		req.Version = 1
	}

	queueName, recognized := router.Classify(req.Action)

	required := agent.CapabilityForQueue(queueName)
	if !s.Agents.Check(declared, required) {
		msg := fmt.Sprintf("agent %q lacks %s capability required for queue %q", declared, required, queueName)
		s.auditRejection(r, declared, req.Action, "authorization", msg)
		s.Metrics.SubmitRejected.WithLabelValues("authorization").Inc()
		writeError(w, http.StatusForbidden, msg)
		return
	}

	job := &domain.Job{
		Action:      strings.TrimSpace(req.Action),
		EntityID:    strings.TrimSpace(req.EntityID),
		EntityType:  req.EntityType,
		Version:     req.Version,
		SubmittedBy: declared,
		SubmittedAt: time.Now(),
		Queue:       queueName,
		Priority:    req.Priority,
		MaxAttempts: s.MaxAttempts,
	}
	if err := job.Validate(); err != nil {
		s.auditRejection(r, declared, req.Action, "validation", err.Error())
		s.Metrics.SubmitRejected.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta, err := domain.DecodeMetadata(queueName, req.Data)
	if err != nil {
		s.auditRejection(r, declared, req.Action, "validation", err.Error())
		s.Metrics.SubmitRejected.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if am, ok := meta.(domain.ApprovalMetadata); ok && len(am.Evidence) == 0 && len(req.Evidence) > 0 {
		am.Evidence = req.Evidence
		meta = am
	}
	job.Metadata = meta

	job.ID = identity.ComputeJobID(job.Action, job.EntityID, job.Version)
	if req.DelayMs > 0 {
		job.NotBefore = time.Now().Add(time.Duration(req.DelayMs) * time.Millisecond)
	}

	// Advisory gate pass for email-destined jobs: the response status
	// reflects what the dispatch-time evaluation will decide, but
	// enforcement stays with the email pool.
	respStatus := statusQueued
	respMessage := "job accepted"
	var advisory *policy.Decision
	if queueName == router.QueueEmail {
		if em, ok := meta.(domain.EmailMetadata); ok {
			d := s.Gate.Evaluate(em)
			advisory = &d
			switch d.Outcome {
			case policy.QueueForApproval:
				respStatus = statusRequiresApproval
				respMessage = "send requires human approval: " + strings.Join(d.Reasons, "; ")
			case policy.Block:
				respStatus = statusBlocked
				respMessage = "send will be blocked: " + strings.Join(d.Reasons, "; ")
			}
		}
	}

	auditID := uuid.New().String()
	job.AuditID = auditID

	result, err := s.Store.Enqueue(ctx, job)
	if err != nil {
		s.auditRejection(r, declared, req.Action, "internal", err.Error())
		writeJSON(w, http.StatusInternalServerError, ActionResponse{
			Status:  statusError,
			Message: "enqueue failed",
		})
		return
	}

	if !result.Inserted {
		// Idempotent success: the identical identity triple is already
		// known; return the existing job rather than creating a second one.
		existing := result.Job
		entry := s.baseEntry(r, declared, req.Action, req.EntityID, req.EntityType)
		entry.JobID = existing.ID
		entry.Outcome = audit.OutcomeSuccess
		entry.Details["duplicate_submission"] = true
		entry.Details["queue"] = existing.Queue
		s.appendAudit(ctx, entry)
		writeJSON(w, http.StatusOK, ActionResponse{
			JobID:   existing.ID,
			Status:  statusQueued,
			Message: "duplicate submission; existing job retained",
			Queue:   existing.Queue,
		})
		return
	}

	entry := s.baseEntry(r, declared, req.Action, req.EntityID, req.EntityType)
	entry.ID = auditID
	entry.JobID = job.ID
	entry.Outcome = audit.OutcomePending
	entry.Details["queue"] = queueName
	entry.Details["version"] = req.Version
	if !recognized {
		// Unrecognized actions degrade into the notification queue; the
		// marker keeps them findable for triage.
		entry.Details["router_fallback"] = true
	}
	if advisory != nil && advisory.Outcome != policy.Send {
		entry.Details["policy_advisory"] = string(advisory.Outcome)
	}
	s.appendAudit(ctx, entry)

	s.Metrics.JobsSubmitted.WithLabelValues(queueName).Inc()
	s.publishEnqueued(ctx, job)

	writeJSON(w, http.StatusOK, ActionResponse{
		JobID:               job.ID,
		Status:              respStatus,
		Message:             respMessage,
		Queue:               queueName,
		EstimatedCompletion: s.estimateCompletion(ctx, queueName, advisory),
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (s *Server) baseEntry(r *http.Request, agentName, action, entityID, entityType string) audit.Entry {
	if entityType == "" {
		entityType = "entity"
	}
	return audit.Entry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Agent:      agentName,
		Action:     action,
		EntityID:   entityID,
		EntityType: entityType,
		Details:    map[string]any{},
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
}

// auditRejection records submissions that never reached the queue. Rejected
// submissions are always written to the trail so spoofing attempts and
// schema failures stay visible.
func (s *Server) auditRejection(r *http.Request, agentName, action, kind, reason string) {
	entry := s.baseEntry(r, agentName, action, "", "")
	entry.Outcome = audit.OutcomeFailure
	entry.Details["rejection"] = kind
	entry.Details["reason"] = reason
	s.appendAudit(r.Context(), entry)
}

func (s *Server) appendAudit(ctx context.Context, entry audit.Entry) {
	if err := s.Audit.Append(ctx, entry); err != nil {
		s.Logger.Error("audit append failed", "entry_id", entry.ID, "err", err)
	}
}

func (s *Server) publishEnqueued(ctx context.Context, job *domain.Job) {
	if s.Bus == nil {
		return
	}
	err := s.Bus.Publish(ctx, bus.TopicJobs, bus.Event{
		Type:      bus.EventEnqueued,
		JobID:     job.ID,
		Queue:     job.Queue,
		Agent:     job.SubmittedBy,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.Logger.Warn("event publish failed", "type", bus.EventEnqueued, "err", err)
	}
}

// estimateCompletion projects a finish time from the queue backlog and the
// pool's concurrency. It is a hint, not a promise.
func (s *Server) estimateCompletion(ctx context.Context, queueName string, advisory *policy.Decision) *time.Time {
	if advisory != nil && advisory.EstimatedSendTime != nil {
		return advisory.EstimatedSendTime
	}
	stats, err := s.Store.Stats(ctx)
	if err != nil {
		return nil
	}
	conc := s.Concurrency[queueName]
	if conc < 1 {
		conc = 1
	}
	backlog := stats[queueName].Waiting + stats[queueName].Active + 1
	nominal := 2 * time.Second
	t := time.Now().Add(time.Duration(backlog/conc+1) * nominal)
	return &t
}
