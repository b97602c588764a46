package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// Handler is the capability every job type implements. The loop itself has no
// business logic; all type-specific behavior lives behind this interface.
type Handler interface {
	Process(ctx context.Context, job *domain.Job) Outcome
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.Job) Outcome

func (f HandlerFunc) Process(ctx context.Context, job *domain.Job) Outcome {
	return f(ctx, job)
}

// SideEffects are rows the completion transaction must persist atomically
// with the terminal status update.
type SideEffects struct {
	Document *domain.Document
	Usage    *domain.UsageRecord
}

// Outcome is a handler's verdict on one attempt. When OK is false, Retryable
// distinguishes transient failures (timeouts, provider errors) from permanent
// ones (malformed upstream response, unsupported input).
type Outcome struct {
	OK          bool
	Result      map[string]any
	SideEffects *SideEffects
	Retryable   bool
	Reason      string
}

func Success(result map[string]any, effects *SideEffects) Outcome {
	return Outcome{OK: true, Result: result, SideEffects: effects}
}

func Transient(reason string) Outcome {
	return Outcome{Retryable: true, Reason: reason}
}

func Permanent(reason string) Outcome {
	return Outcome{Retryable: false, Reason: reason}
}

// Registry maps job type tags to handlers. New types register here; nothing
// else in the queue changes.
type Registry struct {
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

func (r *Registry) Lookup(jobType string) (Handler, error) {
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for type %q", jobType)
	}
	return h, nil
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
