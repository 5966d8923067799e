// cmd/server/main.go runs the action gateway and one worker pool per queue
// in a single process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hedgeco/agentkernel/internal/agent"
	"github.com/hedgeco/agentkernel/internal/audit"
	"github.com/hedgeco/agentkernel/internal/bus"
	"github.com/hedgeco/agentkernel/internal/config"
	"github.com/hedgeco/agentkernel/internal/domain"
	"github.com/hedgeco/agentkernel/internal/gateway"
	"github.com/hedgeco/agentkernel/internal/metrics"
	"github.com/hedgeco/agentkernel/internal/migrate"
	"github.com/hedgeco/agentkernel/internal/policy"
	"github.com/hedgeco/agentkernel/internal/queue"
	"github.com/hedgeco/agentkernel/internal/registry"
	"github.com/hedgeco/agentkernel/internal/router"
	"github.com/hedgeco/agentkernel/internal/worker"
)

func main() {
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Audit ledger: postgres when DATABASE_URL is set, in-memory otherwise.
	var auditStore audit.Store
	if cfg.DatabaseURL != "" {
		logger.Info("connecting to database", "url", cfg.DatabaseURL)
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect to database failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("database ping failed", "err", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		applied, err := migrate.Run(ctx, pool)
		if err != nil {
			logger.Error("run migrations failed", "err", err)
			os.Exit(1)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", "versions", applied)
		}
		auditStore = audit.NewPostgresStore(pool)
	} else {
		logger.Info("DATABASE_URL not set; using in-memory audit ledger")
		auditStore = audit.NewMemoryStore()
	}
	defer auditStore.Close()

	// Event bus: Redis pub/sub when REDIS_URL is set, in-process otherwise.
	var eventBus bus.Bus
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("parse redis URL failed", "err", err)
			os.Exit(1)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()

		logger.Info("connecting to redis", "url", cfg.RedisURL)
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "err", err)
			os.Exit(1)
		}
		logger.Info("redis connected")
		eventBus = bus.NewRedisBus(rc)
	} else {
		logger.Info("REDIS_URL not set; using in-process event bus")
		eventBus = bus.NewMemoryBus()
	}
	defer eventBus.Close()

	store := queue.NewMemoryStore(router.AllQueues, cfg.TerminalRetention)
	agents := agent.NewRegistry()
	auth := agent.NewAuthenticator(cfg.SigningKey, agents)
	gate := policy.NewGate(cfg.AudienceApprovalThreshold)
	m := metrics.New()
	reg := registry.New()
	registerHandlers(reg, logger)

	srv := &gateway.Server{
		Logger:      logger,
		Auth:        auth,
		Agents:      agents,
		Gate:        gate,
		Store:       store,
		Audit:       auditStore,
		Bus:         eventBus,
		Metrics:     m,
		Concurrency: cfg.Concurrency,
		MaxAttempts: cfg.MaxAttempts,
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, name := range router.AllQueues {
		pool := &worker.Pool{
			Queue:        name,
			Concurrency:  cfg.Concurrency[name],
			Store:        store,
			Registry:     reg,
			Audit:        auditStore,
			Bus:          eventBus,
			Metrics:      m,
			Logger:       logger,
			PollInterval: cfg.PollInterval,
		}
		if name == router.QueueEmail {
			pool.Gate = gate
		}
		g.Go(func() error { return pool.Run(gctx) })
	}

	g.Go(func() error { return sampleQueueDepth(gctx, store, m) })

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Addr, "service", gateway.ServiceName)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping http server")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		return httpSrv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("shutdown error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// sampleQueueDepth refreshes the queue depth gauges until shutdown.
func sampleQueueDepth(ctx context.Context, store queue.Store, m *metrics.Metrics) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := store.Stats(ctx)
			if err != nil {
				continue
			}
			for name, st := range stats {
				m.QueueDepth.WithLabelValues(name, "waiting").Set(float64(st.Waiting))
				m.QueueDepth.WithLabelValues(name, "delayed").Set(float64(st.Delayed))
				m.QueueDepth.WithLabelValues(name, "active").Set(float64(st.Active))
			}
		}
	}
}

// registerHandlers wires one executor per queue. These simulate the
// downstream platform calls; swapping in real integrations is a matter of
// replacing the closure bodies.
func registerHandlers(reg *registry.Registry, logger *slog.Logger) {
	reg.Register(router.QueueApproval, func(ctx context.Context, job *domain.Job) error {
		logger.Info("approval recorded",
			"job_id", job.ID, "action", job.Action, "entity_id", job.EntityID)
		return nil
	})

	reg.Register(router.QueuePublish, func(ctx context.Context, job *domain.Job) error {
		meta, ok := job.Metadata.(domain.PublishMetadata)
		if !ok {
			return &registry.FatalError{Cause: fmt.Errorf("publish job %s missing publish metadata", job.ID)}
		}
		logger.Info("content published",
			"job_id", job.ID, "entity_id", job.EntityID, "sources", len(meta.SourceURLs))
		return nil
	})

	reg.Register(router.QueueEmail, func(ctx context.Context, job *domain.Job) error {
		meta, ok := job.Metadata.(domain.EmailMetadata)
		if !ok {
			return &registry.FatalError{Cause: fmt.Errorf("email job %s missing email metadata", job.ID)}
		}
		if meta.ThrottleMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(meta.ThrottleMs) * time.Millisecond):
			}
		}
		logger.Info("email dispatched",
			"job_id", job.ID,
			"template", meta.TemplateKey,
			"segment", meta.Audience.Segment,
			"recipients", meta.Audience.Size)
		return nil
	})

	reg.Register(router.QueueEmbedding, func(ctx context.Context, job *domain.Job) error {
		logger.Info("embedding computed", "job_id", job.ID, "entity_id", job.EntityID)
		return nil
	})

	reg.Register(router.QueueWebhook, func(ctx context.Context, job *domain.Job) error {
		logger.Info("webhook delivered", "job_id", job.ID, "action", job.Action)
		return nil
	})

	reg.Register(router.QueueNotification, func(ctx context.Context, job *domain.Job) error {
		logger.Info("notification sent", "job_id", job.ID, "action", job.Action)
		return nil
	})
}
