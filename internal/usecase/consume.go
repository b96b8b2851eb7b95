package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"taskstream/internal/tasks"
	"taskstream/pkg/backoff"
	"time"

	"github.com/rs/zerolog/log"
)

// Consumer pulls invocations off the queue and runs their task bodies. Task
// failures never crash the consumer loop: an error or panic from the body is
// converted into a RETRY (with backoff) while attempts remain, then into a
// terminal FAILURE with a captured traceback.
//
// Delivery is at-least-once: a worker crash mid-task leaves the stream entry
// pending and another consumer will eventually re-run it. Task bodies are not
// assumed idempotent and nothing here deduplicates.
type Consumer struct {
	Q            ports.Queue
	Results      ports.Results
	Bus          ports.Bus
	Registry     *tasks.Registry
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t, streamID, err := c.Q.Claim(ctx, c.ConsumerName, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Msg("claim failed")
			continue
		}
		if t == nil {
			continue
		}

		c.process(ctx, t, streamID)
	}
}

func (c Consumer) process(ctx context.Context, t *domain.Task, streamID string) {
	t.Status = domain.StatusStarted
	t.Attempts++
	if err := c.Results.Save(ctx, *t); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task_id", t.ID).Msg("failed to mark task started")
	}

	result, err := c.runBody(ctx, t)
	if err == nil {
		if err := c.Q.Ack(ctx, streamID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("task_id", t.ID).Msg("ack failed")
		}
		t.Status = domain.StatusSuccess
		t.Result = result
		t.Traceback = ""
		if err := c.Results.Save(ctx, *t); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("task_id", t.ID).Msg("failed to record task success")
		}
		log.Ctx(ctx).Info().Str("task_id", t.ID).Str("task", t.Name).Int("attempts", t.Attempts).Msg("task succeeded")
		return
	}

	if t.Attempts >= t.MaxAttempts {
		if dlqErr := c.Q.ToDLQ(ctx, streamID, *t, err.Error()); dlqErr != nil {
			log.Ctx(ctx).Error().Err(dlqErr).Str("task_id", t.ID).Msg("failed to move task to DLQ")
		}
		t.Status = domain.StatusFailure
		if saveErr := c.Results.Save(ctx, *t); saveErr != nil {
			log.Ctx(ctx).Error().Err(saveErr).Str("task_id", t.ID).Msg("failed to record task failure")
		}
		// The body propagated its error instead of emitting a terminal
		// event itself, so emit one here; live subscribers would hang
		// otherwise.
		tasks.NewStreamer(t.ID, c.Bus).Emit(ctx, fmt.Sprintf("Task failed: %s", err), domain.EventTaskError, nil)
		log.Ctx(ctx).Error().Err(err).Str("task_id", t.ID).Str("task", t.Name).Int("attempts", t.Attempts).Msg("task failed permanently")
		return
	}

	delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, t.Attempts)
	t.Status = domain.StatusRetry
	t.NextRunAt = time.Now().Add(delay)
	if saveErr := c.Results.Save(ctx, *t); saveErr != nil {
		log.Ctx(ctx).Warn().Err(saveErr).Str("task_id", t.ID).Msg("failed to record retry state")
	}
	if ackErr := c.Q.Ack(ctx, streamID); ackErr != nil {
		log.Ctx(ctx).Warn().Err(ackErr).Str("task_id", t.ID).Msg("ack failed")
	}
	if retryErr := c.Q.EnqueueRetry(ctx, *t, t.NextRunAt); retryErr != nil {
		log.Ctx(ctx).Error().Err(retryErr).Str("task_id", t.ID).Msg("failed to schedule retry")
	}
	log.Ctx(ctx).Warn().Err(err).Str("task_id", t.ID).Str("task", t.Name).
		Int("attempt", t.Attempts).Dur("retry_in", delay).Msg("task attempt failed, retry scheduled")
}

// runBody resolves and executes the task body, converting panics into errors
// with a captured stack so one bad task never takes down the worker.
func (c Consumer) runBody(ctx context.Context, t *domain.Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task body panic: %v", r)
			t.Traceback = fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		}
	}()

	handler, err := c.Registry.Resolve(t.Name)
	if err != nil {
		t.Traceback = err.Error()
		return nil, err
	}

	stream := tasks.NewStreamer(t.ID, c.Bus)
	result, err = handler(ctx, stream, t.Params)
	if err != nil {
		t.Traceback = err.Error()
	}
	return result, err
}
