package ports

import (
	"context"
	"taskstream/internal/domain"
	"time"
)

type Queue interface {
	Enqueue(ctx context.Context, t domain.Task) error
	// EnqueueRetry parks a failed invocation for a delayed re-run.
	EnqueueRetry(ctx context.Context, t domain.Task, runAt time.Time) error
	Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Task, string /*streamID*/, error)
	Ack(ctx context.Context, streamID string) error
	ToDLQ(ctx context.Context, streamID string, t domain.Task, reason string) error
}

type Results interface {
	Save(ctx context.Context, t domain.Task) error
	// Get returns nil without error for ids the store has never seen
	// (or whose record has expired); callers treat that as PENDING.
	Get(ctx context.Context, id string) (*domain.Task, error)
}

type RetryScheduler interface {
	// moves due retries back onto the stream
	Run(ctx context.Context) error
}
