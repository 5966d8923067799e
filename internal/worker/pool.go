// Package worker runs one fixed-concurrency pool per named queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hedgeco/agentkernel/internal/audit"
	"github.com/hedgeco/agentkernel/internal/bus"
	"github.com/hedgeco/agentkernel/internal/domain"
	"github.com/hedgeco/agentkernel/internal/metrics"
	"github.com/hedgeco/agentkernel/internal/policy"
	"github.com/hedgeco/agentkernel/internal/queue"
	"github.com/hedgeco/agentkernel/internal/registry"
	"github.com/hedgeco/agentkernel/internal/router"
)

// Pool executes jobs from a single queue. Concurrency is fixed at startup;
// a concurrency-1 pool guarantees no two of its jobs ever run concurrently.
// Pools never share locks or workers with each other.
type Pool struct {
	Queue        string
	Concurrency  int
	Store        queue.Store
	Registry     *registry.Registry
	Audit        audit.Store
	Bus          bus.Bus
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	PollInterval time.Duration

	// Gate is set on the email pool only; evaluated before dispatch, it can
	// override the router's classification for the email path.
	Gate *policy.Gate

	// Backoff computes the retry delay from the attempt number. Defaults
	// to exponential with jitter.
	Backoff func(attempt int) time.Duration
}

// Run claims and executes jobs until ctx is cancelled. It blocks until all
// workers in the pool have returned, so it composes with errgroup.
func (p *Pool) Run(ctx context.Context) error {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 100 * time.Millisecond
	}
	if p.Backoff == nil {
		p.Backoff = computeBackoff
	}

	p.Logger.Info("worker pool starting",
		"queue", p.Queue,
		"concurrency", p.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	return nil
}

func (p *Pool) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.Store.Claim(ctx, p.Queue)
		if err != nil {
			p.Logger.Error("claim error", "queue", p.Queue, "err", err)
			p.idle(ctx)
			continue
		}
		if job == nil {
			p.idle(ctx)
			continue
		}
		p.runJob(ctx, job, slot)
	}
}

// idle sleeps one poll interval, waking early on shutdown.
func (p *Pool) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.PollInterval):
	}
}

func (p *Pool) runJob(ctx context.Context, job *domain.Job, slot int) {
	log := p.Logger.With(
		"job_id", job.ID,
		"queue", p.Queue,
		"action", job.Action,
		"attempt", job.Attempt,
		"slot", slot)

	if p.Gate != nil && job.Queue == router.QueueEmail {
		if done := p.applyGate(ctx, job, log); done {
			return
		}
	}

	handler, err := p.Registry.Lookup(job.Queue)
	if err != nil {
		log.Error("no handler for queue, failing job", "err", err)
		p.failJob(ctx, job, err, log)
		return
	}

	log.Info("job started")
	p.publish(ctx, bus.EventStarted, job, "")

	start := time.Now()
	handlerErr := handler(ctx, job)
	elapsed := time.Since(start)
	p.Metrics.HandlerDuration.WithLabelValues(p.Queue).Observe(elapsed.Seconds())

	if handlerErr == nil {
		if err := p.Store.Complete(ctx, job.ID); err != nil {
			log.Error("failed to mark completed", "err", err)
			return
		}
		p.mergeDetails(ctx, job, map[string]any{
			"attempts":    job.Attempt,
			"duration_ms": elapsed.Milliseconds(),
		}, log)
		p.finalize(ctx, job, audit.OutcomeSuccess, log)
		p.Metrics.JobsCompleted.WithLabelValues(p.Queue).Inc()
		p.publish(ctx, bus.EventCompleted, job, "")
		log.Info("job completed", "duration_ms", elapsed.Milliseconds())
		return
	}

	// Per-attempt failure details accumulate on the audit entry.
	p.mergeDetails(ctx, job, map[string]any{
		fmt.Sprintf("attempt_%d_error", job.Attempt): handlerErr.Error(),
	}, log)

	var fatal *registry.FatalError
	if errors.As(handlerErr, &fatal) || job.Attempt >= job.MaxAttempts {
		log.Warn("job failed permanently",
			"err", handlerErr,
			"is_fatal", fatal != nil,
			"max_attempts", job.MaxAttempts)
		p.failJob(ctx, job, handlerErr, log)
		return
	}

	delay := p.Backoff(job.Attempt)
	if err := p.Store.Requeue(ctx, job.ID, delay, handlerErr.Error()); err != nil {
		log.Error("failed to requeue for retry", "err", err)
		return
	}
	p.Metrics.JobsRetried.WithLabelValues(p.Queue).Inc()
	p.publish(ctx, bus.EventRetried, job, handlerErr.Error())
	log.Warn("job failed, will retry",
		"err", handlerErr,
		"retry_in", delay,
		"max_attempts", job.MaxAttempts)
}

// applyGate runs the safe-send gate on a claimed email job. Returns true
// when the job was rerouted or blocked and must not be dispatched here.
func (p *Pool) applyGate(ctx context.Context, job *domain.Job, log *slog.Logger) bool {
	meta, ok := job.Metadata.(domain.EmailMetadata)
	if !ok {
		err := fmt.Errorf("email job carries %T metadata", job.Metadata)
		log.Error("malformed email job", "err", err)
		p.failJob(ctx, job, err, log)
		return true
	}

	decision := p.Gate.Evaluate(meta)
	switch decision.Outcome {
	case policy.Send:
		return false

	case policy.QueueForApproval:
		if err := p.Store.Reroute(ctx, job.ID, router.QueueApproval); err != nil {
			log.Error("failed to reroute to approval", "err", err)
			return true
		}
		p.mergeDetails(ctx, job, map[string]any{
			"policy_decision": string(decision.Outcome),
			"policy_reasons":  decision.Reasons,
			"approval_level":  string(decision.ApprovalLevel),
			"rerouted_from":   router.QueueEmail,
		}, log)
		p.Metrics.JobsRerouted.WithLabelValues(p.Queue).Inc()
		p.publish(ctx, bus.EventRerouted, job, string(decision.ApprovalLevel))
		log.Info("send escalated to approval",
			"approval_level", decision.ApprovalLevel,
			"reasons", decision.Reasons)
		return true

	default: // policy.Block
		if err := p.Store.Fail(ctx, job.ID, "blocked by safe-send policy"); err != nil {
			log.Error("failed to mark blocked job", "err", err)
			return true
		}
		p.mergeDetails(ctx, job, map[string]any{
			"policy_decision": string(decision.Outcome),
			"policy_reasons":  decision.Reasons,
		}, log)
		p.finalize(ctx, job, audit.OutcomeFailure, log)
		p.Metrics.JobsBlocked.WithLabelValues(p.Queue).Inc()
		p.publish(ctx, bus.EventBlocked, job, joinReasons(decision.Reasons))
		log.Warn("send blocked", "reasons", decision.Reasons)
		return true
	}
}

func (p *Pool) failJob(ctx context.Context, job *domain.Job, cause error, log *slog.Logger) {
	if err := p.Store.Fail(ctx, job.ID, cause.Error()); err != nil {
		log.Error("failed to mark failed", "err", err)
		return
	}
	p.mergeDetails(ctx, job, map[string]any{
		"attempts":   job.Attempt,
		"last_error": cause.Error(),
	}, log)
	p.finalize(ctx, job, audit.OutcomeFailure, log)
	p.Metrics.JobsFailed.WithLabelValues(p.Queue).Inc()
	p.publish(ctx, bus.EventFailed, job, cause.Error())
}

func (p *Pool) mergeDetails(ctx context.Context, job *domain.Job, details map[string]any, log *slog.Logger) {
	if job.AuditID == "" {
		return
	}
	if err := p.Audit.MergeDetails(ctx, job.AuditID, details); err != nil {
		log.Error("audit merge failed", "audit_id", job.AuditID, "err", err)
	}
}

func (p *Pool) finalize(ctx context.Context, job *domain.Job, outcome audit.Outcome, log *slog.Logger) {
	if job.AuditID == "" {
		return
	}
	if err := p.Audit.Finalize(ctx, job.AuditID, outcome); err != nil {
		log.Error("audit finalize failed", "audit_id", job.AuditID, "err", err)
	}
}

func (p *Pool) publish(ctx context.Context, eventType string, job *domain.Job, detail string) {
	if p.Bus == nil {
		return
	}
	err := p.Bus.Publish(ctx, bus.TopicJobs, bus.Event{
		Type:      eventType,
		JobID:     job.ID,
		Queue:     p.Queue,
		Agent:     job.SubmittedBy,
		Timestamp: time.Now(),
		Detail:    detail,
	})
	if err != nil {
		p.Logger.Warn("event publish failed", "type", eventType, "err", err)
	}
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}
