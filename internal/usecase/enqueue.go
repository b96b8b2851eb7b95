package usecase

import (
	"context"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"taskstream/internal/tasks"
	"time"

	"github.com/google/uuid"
)

const defaultMaxAttempts = 5

// Enqueuer validates and queues task invocations. Submission is
// fire-and-forget: the task id returns immediately, before any worker has
// seen the invocation.
type Enqueuer struct {
	Q        ports.Queue
	Results  ports.Results
	Registry *tasks.Registry
}

// Submit queues one invocation of the named task and returns its id. The name
// is validated against the registry first (tasks.ErrUnknownTask); nothing is
// queued or recorded for an unknown name. The PENDING record is written
// before the stream entry so a status poll racing the enqueue never sees a
// missing key for an id we already handed out.
func (e Enqueuer) Submit(ctx context.Context, name string, params map[string]any) (string, error) {
	if _, err := e.Registry.Resolve(name); err != nil {
		return "", err
	}

	t := domain.Task{
		ID:          uuid.NewString(),
		Name:        name,
		Params:      params,
		Status:      domain.StatusPending,
		MaxAttempts: defaultMaxAttempts,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.Results.Save(ctx, t); err != nil {
		return "", err
	}
	if err := e.Q.Enqueue(ctx, t); err != nil {
		return "", err
	}
	return t.ID, nil
}
