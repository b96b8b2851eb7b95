package usecase

import (
	"context"
	"errors"
	"sync"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"time"
)

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []domain.Task
	retries  []domain.Task
	retryAt  []time.Time
	acked    []string
	dlq      []domain.Task
	failWith error
}

func (q *fakeQueue) Enqueue(_ context.Context, t domain.Task) error {
	if q.failWith != nil {
		return q.failWith
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, t)
	return nil
}

func (q *fakeQueue) EnqueueRetry(_ context.Context, t domain.Task, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries = append(q.retries, t)
	q.retryAt = append(q.retryAt, runAt)
	return nil
}

func (q *fakeQueue) Claim(context.Context, string, time.Duration) (*domain.Task, string, error) {
	return nil, "", nil
}

func (q *fakeQueue) Ack(_ context.Context, streamID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, streamID)
	return nil
}

func (q *fakeQueue) ToDLQ(_ context.Context, _ string, t domain.Task, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, t)
	return nil
}

type fakeResults struct {
	mu      sync.Mutex
	saved   map[string]domain.Task
	history []domain.TaskStatus
}

func newFakeResults() *fakeResults {
	return &fakeResults{saved: make(map[string]domain.Task)}
}

func (r *fakeResults) Save(_ context.Context, t domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[t.ID] = t
	r.history = append(r.history, t.Status)
	return nil
}

func (r *fakeResults) Get(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.saved[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type captureBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *captureBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string) (ports.Subscription, error) {
	return nil, errors.New("capture bus does not subscribe")
}
