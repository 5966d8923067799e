// Package registry maps queue names to handler functions.
package registry

import (
	"context"
	"fmt"

	"github.com/hedgeco/agentkernel/internal/domain"
)

// Handler is the function signature every queue handler must implement.
// Handlers own their own time bounds; the kernel imposes no global timeout.
type Handler func(ctx context.Context, job *domain.Job) error

// FatalError wraps a handler error that must not be retried. Return this to
// move a job directly to the failed state.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Registry maps queue names to Handler functions. Registration happens once
// at startup before any pool runs; lookups after that are read-only.
type Registry struct {
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(queueName string, h Handler) {
	r.handlers[queueName] = h
}

func (r *Registry) Lookup(queueName string) (Handler, error) {
	h, ok := r.handlers[queueName]
	if !ok {
		return nil, fmt.Errorf("no handler registered for queue %q", queueName)
	}
	return h, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}
