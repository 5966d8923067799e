// Package config builds process configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures every knob the kernel reads at startup.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// SigningKey verifies agent bearer tokens.
	SigningKey string
	// DatabaseURL selects the postgres audit backend when set; empty means
	// the in-memory ledger.
	DatabaseURL string
	// RedisURL selects the Redis event bus when set; empty means the
	// in-process bus.
	RedisURL string

	// Concurrency fixes each queue's worker pool size at startup.
	Concurrency map[string]int
	// MaxAttempts bounds handler retries per job.
	MaxAttempts int
	// TerminalRetention bounds each queue's completed/failed buckets.
	TerminalRetention int
	// AudienceApprovalThreshold is the safe-send gate's volume control.
	AudienceApprovalThreshold int
	// PollInterval is how long an idle worker sleeps between claims.
	PollInterval time.Duration
}

// FromEnv reads the environment with development defaults.
func FromEnv() Config {
	return Config{
		Addr:        getenv("KERNEL_ADDR", ":8080"),
		SigningKey:  getenv("KERNEL_SIGNING_KEY", "dev-signing-key-change-in-production"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		// Serialized queues are a correctness requirement: human approval
		// and compliance publish must never race. Embedding is CPU-bound.
		Concurrency: map[string]int{
			"approval":     1,
			"publish":      1,
			"embedding":    1,
			"email":        2,
			"webhook":      3,
			"notification": 5,
		},
		MaxAttempts:               getint("KERNEL_MAX_ATTEMPTS", 3),
		TerminalRetention:         getint("KERNEL_TERMINAL_RETENTION", 500),
		AudienceApprovalThreshold: getint("KERNEL_AUDIENCE_THRESHOLD", 5000),
		PollInterval:              getduration("KERNEL_POLL_INTERVAL", 100*time.Millisecond),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
