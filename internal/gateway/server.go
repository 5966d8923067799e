// Package gateway is the HTTP boundary of the action orchestration kernel.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hedgeco/agentkernel/internal/agent"
	"github.com/hedgeco/agentkernel/internal/audit"
	"github.com/hedgeco/agentkernel/internal/bus"
	"github.com/hedgeco/agentkernel/internal/metrics"
	"github.com/hedgeco/agentkernel/internal/policy"
	"github.com/hedgeco/agentkernel/internal/queue"
)

// ServiceName appears in health responses and logs.
const ServiceName = "agent-action-kernel"

// Server ties authentication, authorization, identity, routing, and the
// queue store together behind the HTTP API. It renders no UI and owns no
// business data; callers submit jobs and read the audit trail.
type Server struct {
	Logger  *slog.Logger
	Auth    *agent.Authenticator
	Agents  *agent.Registry
	Gate    *policy.Gate
	Store   queue.Store
	Audit   audit.Store
	Bus     bus.Bus
	Metrics *metrics.Metrics

	// Concurrency mirrors the pool sizes, used for completion estimates.
	Concurrency map[string]int
	// MaxAttempts is stamped onto each accepted job.
	MaxAttempts int
}

// Routes builds the chi router with the standard middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/action", s.handleAction)
	r.Get("/health", s.handleHealth)
	r.Get("/queues", s.handleQueues)
	r.Get("/audit", s.handleAudit)
	r.Get("/audit/replay/{jobID}", s.handleReplay)
	r.Get("/jobs/{jobID}", s.handleJobStatus)
	r.Delete("/jobs/{jobID}", s.handleJobCancel)
	r.Get("/events", s.handleEvents)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
