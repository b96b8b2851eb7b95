package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"taskstream/internal/domain"
	"taskstream/internal/tasks"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConsumer(t *testing.T, reg *tasks.Registry) (Consumer, *fakeQueue, *fakeResults, *captureBus) {
	t.Helper()
	q := &fakeQueue{}
	res := newFakeResults()
	bus := &captureBus{}
	c := Consumer{
		Q:            q,
		Results:      res,
		Bus:          bus,
		Registry:     reg,
		ConsumerName: "test-consumer",
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   10 * time.Millisecond,
	}
	return c, q, res, bus
}

func TestProcessSuccess(t *testing.T) {
	reg := tasks.NewRegistry()
	require.NoError(t, reg.Register("ok", func(context.Context, *tasks.Streamer, map[string]any) (any, error) {
		return map[string]any{"answer": 42}, nil
	}))
	c, q, res, _ := testConsumer(t, reg)

	task := domain.Task{ID: "t1", Name: "ok", MaxAttempts: 3}
	c.process(context.Background(), &task, "stream-1")

	require.Equal(t, []string{"stream-1"}, q.acked)
	saved, _ := res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusSuccess, saved.Status)
	require.Equal(t, map[string]any{"answer": 42}, saved.Result)
	require.Equal(t, 1, saved.Attempts)
	require.Empty(t, saved.Traceback)
	// STARTED was recorded before the body ran
	require.Equal(t, []domain.TaskStatus{domain.StatusStarted, domain.StatusSuccess}, res.history)
}

func TestProcessRetriesThenFails(t *testing.T) {
	reg := tasks.NewRegistry()
	require.NoError(t, reg.Register("always_fails", func(context.Context, *tasks.Streamer, map[string]any) (any, error) {
		return nil, errors.New("no luck")
	}))
	c, q, res, bus := testConsumer(t, reg)

	task := domain.Task{ID: "t1", Name: "always_fails", MaxAttempts: 3}

	// attempts 1 and 2 reschedule
	c.process(context.Background(), &task, "s1")
	saved, _ := res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusRetry, saved.Status)
	require.Len(t, q.retries, 1)
	require.True(t, q.retryAt[0].After(time.Now().Add(-time.Second)))
	require.Empty(t, q.dlq)

	c.process(context.Background(), &task, "s2")
	require.Len(t, q.retries, 2)

	// attempt 3 exhausts the budget
	c.process(context.Background(), &task, "s3")
	saved, _ = res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusFailure, saved.Status)
	require.Equal(t, 3, saved.Attempts)
	require.Contains(t, saved.Traceback, "no luck")
	require.Len(t, q.dlq, 1)

	// the executor emitted the terminal event the body never sent
	require.NotEmpty(t, bus.payloads)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(bus.payloads[len(bus.payloads)-1], &ev))
	require.Equal(t, domain.EventTaskError, ev.Type)
	require.Equal(t, "t1", ev.TaskID)
}

func TestProcessRecoversPanic(t *testing.T) {
	reg := tasks.NewRegistry()
	require.NoError(t, reg.Register("panics", func(context.Context, *tasks.Streamer, map[string]any) (any, error) {
		panic("kaboom")
	}))
	c, q, res, _ := testConsumer(t, reg)

	task := domain.Task{ID: "t1", Name: "panics", MaxAttempts: 1}
	c.process(context.Background(), &task, "s1")

	saved, _ := res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusFailure, saved.Status)
	require.Contains(t, saved.Traceback, "kaboom")
	require.Len(t, q.dlq, 1)
}

func TestProcessFailureValueIsStillSuccess(t *testing.T) {
	// Bodies that catch their own error return a failure value; at the
	// status level that is a completed invocation.
	reg := tasks.NewRegistry()
	require.NoError(t, reg.Register("caught", func(context.Context, *tasks.Streamer, map[string]any) (any, error) {
		return map[string]any{"status": "failed", "error": "handled internally"}, nil
	}))
	c, _, res, _ := testConsumer(t, reg)

	task := domain.Task{ID: "t1", Name: "caught", MaxAttempts: 3}
	c.process(context.Background(), &task, "s1")

	saved, _ := res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusSuccess, saved.Status)
	require.Equal(t, "failed", saved.Result.(map[string]any)["status"])
}

func TestProcessUnregisteredTaskGoesToDLQ(t *testing.T) {
	// A queue entry for a name this worker doesn't know (version skew)
	// must not crash the loop.
	c, q, res, _ := testConsumer(t, tasks.NewRegistry())

	task := domain.Task{ID: "t1", Name: "ghost", MaxAttempts: 1}
	c.process(context.Background(), &task, "s1")

	saved, _ := res.Get(context.Background(), "t1")
	require.Equal(t, domain.StatusFailure, saved.Status)
	require.Len(t, q.dlq, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c, _, _, _ := testConsumer(t, tasks.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Run(ctx), context.Canceled)
}
