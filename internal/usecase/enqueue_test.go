package usecase

import (
	"context"
	"taskstream/internal/domain"
	"taskstream/internal/tasks"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *tasks.Registry {
	t.Helper()
	r := tasks.NewRegistry()
	require.NoError(t, r.Register("echo", func(_ context.Context, _ *tasks.Streamer, params map[string]any) (any, error) {
		return params, nil
	}))
	return r
}

func TestSubmitReturnsDistinctIDs(t *testing.T) {
	q := &fakeQueue{}
	res := newFakeResults()
	enq := Enqueuer{Q: q, Results: res, Registry: testRegistry(t)}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := enq.Submit(context.Background(), "echo", map[string]any{"n": i})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.False(t, seen[id], "task id %s issued twice", id)
		seen[id] = true
	}
	require.Len(t, q.enqueued, 10)
}

func TestSubmitRecordsPendingBeforeQueueing(t *testing.T) {
	q := &fakeQueue{}
	res := newFakeResults()
	enq := Enqueuer{Q: q, Results: res, Registry: testRegistry(t)}

	id, err := enq.Submit(context.Background(), "echo", map[string]any{"user_id": "u1"})
	require.NoError(t, err)

	saved, err := res.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, domain.StatusPending, saved.Status)
	require.Equal(t, "echo", saved.Name)
	require.Equal(t, defaultMaxAttempts, saved.MaxAttempts)

	require.Len(t, q.enqueued, 1)
	require.Equal(t, id, q.enqueued[0].ID)
	require.Equal(t, "u1", q.enqueued[0].Params["user_id"])
}

func TestSubmitUnknownTaskQueuesNothing(t *testing.T) {
	q := &fakeQueue{}
	res := newFakeResults()
	enq := Enqueuer{Q: q, Results: res, Registry: testRegistry(t)}

	_, err := enq.Submit(context.Background(), "does_not_exist", nil)
	require.ErrorIs(t, err, tasks.ErrUnknownTask)
	require.Empty(t, q.enqueued)
	require.Empty(t, res.history)
}
