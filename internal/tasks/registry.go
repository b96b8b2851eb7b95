// Package tasks holds the task registry, the progress streamer and the
// built-in task bodies.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTask is returned when a submission references a name no task was
// registered under. It is a caller error, not a broker failure.
var ErrUnknownTask = errors.New("unknown task")

// Handler is one task body. It receives a Streamer bound to its invocation as
// the only way to communicate progress to the outside world, and returns the
// invocation's result. Handlers that want a normalized failure for the status
// endpoint may catch their own error, emit a task_error event and return a
// failure value instead of an error; a returned error (or panic) goes through
// the executor's retry/FAILURE path instead.
type Handler func(ctx context.Context, stream *Streamer, params map[string]any) (any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return h, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
