package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hedgeco/agentkernel/internal/audit"
	"github.com/hedgeco/agentkernel/internal/bus"
	"github.com/hedgeco/agentkernel/internal/queue"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"queues":    s.Store.Queues(),
	})
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleAudit filters the ledger newest-first. format=csv flattens the
// entries for export; the default is full JSON.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		Agent:      strings.TrimSpace(q.Get("agent")),
		Action:     strings.TrimSpace(q.Get("action")),
		EntityID:   strings.TrimSpace(q.Get("entityId")),
		EntityType: strings.TrimSpace(q.Get("entityType")),
		Outcome:    audit.Outcome(strings.TrimSpace(q.Get("outcome"))),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	var err error
	if f.StartTime, err = parseTime(q.Get("startTime")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.EndTime, err = parseTime(q.Get("endTime")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.Audit.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.EqualFold(q.Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := audit.WriteCSV(w, entries); err != nil {
			s.Logger.Error("csv export failed", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"returned": len(entries),
		"entries":  entries,
	})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	replay, err := s.Audit.Replay(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(replay.Entries) == 0 {
		writeError(w, http.StatusNotFound, "no audit entries for job "+jobID)
		return
	}
	writeJSON(w, http.StatusOK, replay)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.Store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":       job.ID,
		"action":      job.Action,
		"entityId":    job.EntityID,
		"version":     job.Version,
		"queue":       job.Queue,
		"state":       job.State,
		"priority":    job.Priority,
		"attempt":     job.Attempt,
		"maxAttempts": job.MaxAttempts,
		"submittedBy": job.SubmittedBy,
		"submittedAt": job.SubmittedAt,
		"lastError":   job.LastError,
	})
}

// handleJobCancel cancels a job that has not started executing. Executing
// jobs must finish, fail, or retry on their own; cancelling them is
// deliberately unsupported.
func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	res, err := s.Store.Cancel(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Found {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if !res.Cancelled {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job is %s and can no longer be cancelled", res.State))
		return
	}
	s.closeAuditForCancel(r, jobID)
	if s.Bus != nil {
		_ = s.Bus.Publish(r.Context(), bus.TopicJobs, bus.Event{
			Type:      bus.EventCancelled,
			JobID:     jobID,
			Timestamp: time.Now(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId": jobID,
		"state": res.State,
	})
}

// closeAuditForCancel settles the submission's ledger entry so a
// cancelled job does not stay pending forever. The job never ran, so
// the outcome is failure with a cancelled marker.
func (s *Server) closeAuditForCancel(r *http.Request, jobID string) {
	ctx := r.Context()
	job, err := s.Store.Get(ctx, jobID)
	if err != nil || job.AuditID == "" {
		return
	}
	if err := s.Audit.MergeDetails(ctx, job.AuditID, map[string]any{"cancelled": true}); err != nil {
		s.Logger.Error("audit merge failed", "audit_id", job.AuditID, "err", err)
	}
	if err := s.Audit.Finalize(ctx, job.AuditID, audit.OutcomeFailure); err != nil {
		s.Logger.Error("audit finalize failed", "audit_id", job.AuditID, "err", err)
	}
}

// handleEvents streams job lifecycle events as server-sent events.
// Delivery is best-effort; clients reconcile against /jobs and /audit.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	events, cancel, err := s.Bus.Subscribe(r.Context(), bus.TopicJobs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := encodeEvent(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func encodeEvent(ev bus.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("time filters must be RFC3339")
	}
	return t.UTC(), nil
}
