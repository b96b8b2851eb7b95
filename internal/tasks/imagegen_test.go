package tasks

import (
	"context"
	"errors"
	"fmt"
	"taskstream/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	url string
	err error
}

func (m fakeModel) Generate(context.Context, string, GenerateOptions) (string, error) {
	return m.url, m.err
}

type fakeStore struct {
	putName string
}

func (s *fakeStore) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	s.putName = name
	return "http://assets.test/" + name, nil
}

func fakeFetch(_ context.Context, url string) ([]byte, error) {
	return []byte("bytes-of-" + url), nil
}

func TestImageTaskSuccess(t *testing.T) {
	bus := &captureBus{}
	store := &fakeStore{}
	task := &ImageTask{
		Model: fakeModel{url: "http://model.test/out.png"},
		Store: store,
		Fetch: fakeFetch,
	}

	res, err := task.Run(context.Background(), NewStreamer("t1", bus), map[string]any{
		"prompt":  "a lighthouse at dusk",
		"user_id": "u42",
	})
	require.NoError(t, err)

	result, ok := res.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "completed", result["status"])
	require.Equal(t, "http://assets.test/"+store.putName, result["public_url"])
	require.Equal(t, "u42", result["user_id"])

	evs := bus.events(t)
	require.Equal(t, domain.EventTaskStart, evs[0].Type)
	var starts, ends int
	for _, ev := range evs {
		switch ev.Type {
		case domain.EventStageStart:
			starts++
		case domain.EventStageEnd:
			ends++
		}
	}
	require.Equal(t, 4, starts)
	require.Equal(t, 4, ends)

	last := evs[len(evs)-1]
	require.Equal(t, domain.EventTaskEnd, last.Type)
	require.NotNil(t, last.Extra["data"])
}

func TestImageTaskFailureIsAValue(t *testing.T) {
	bus := &captureBus{}
	task := &ImageTask{
		Model: fakeModel{err: errors.New("model offline")},
		Store: &fakeStore{},
		Fetch: fakeFetch,
	}

	res, err := task.Run(context.Background(), NewStreamer("t1", bus), map[string]any{"prompt": "anything"})
	require.NoError(t, err, "image task converts its failures into result values")

	result := res.(map[string]any)
	require.Equal(t, "failed", result["status"])
	require.Contains(t, result["error"], "model offline")

	evs := bus.events(t)
	last := evs[len(evs)-1]
	require.Equal(t, domain.EventTaskError, last.Type)

	// the generate stage still closed its bracket before the error surfaced
	var ends int
	for _, ev := range evs {
		if ev.Type == domain.EventStageEnd {
			ends++
		}
	}
	require.Equal(t, 1, ends)
}

func TestImageTaskRequiresPrompt(t *testing.T) {
	bus := &captureBus{}
	task := &ImageTask{Model: fakeModel{}, Store: &fakeStore{}, Fetch: fakeFetch}

	res, err := task.Run(context.Background(), NewStreamer("t1", bus), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "failed", res.(map[string]any)["status"])
}

func TestExampleStreamingEmitsProgress(t *testing.T) {
	bus := &captureBus{}
	res, err := ExampleStreaming(context.Background(), NewStreamer("t1", bus), map[string]any{
		"duration": float64(3), // JSON numbers decode as float64
		"step_ms":  float64(1),
	})
	require.NoError(t, err)
	require.Equal(t, "completed", res.(map[string]any)["status"])

	evs := bus.events(t)
	require.Equal(t, domain.EventTaskStart, evs[0].Type)
	require.Equal(t, domain.EventTaskEnd, evs[len(evs)-1].Type)

	var progress []domain.Event
	for _, ev := range evs {
		if ev.Type == domain.EventProgress {
			progress = append(progress, ev)
		}
	}
	require.Len(t, progress, 3)
	require.InDelta(t, 1.0/3.0, progress[0].Extra["progress"], 1e-9)
	require.Equal(t, float64(1), progress[2].Extra["progress"])
}

func TestExampleStreamingHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExampleStreaming(ctx, NewStreamer("t1", &captureBus{}), map[string]any{
		"duration": 5,
		"step_ms":  50,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIntParamCoercions(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want int
	}{
		{float64(7), 7},
		{3, 3},
		{"12", 12},
		{"nope", 9},
		{nil, 9},
	} {
		got := intParam(map[string]any{"k": tc.in}, "k", 9)
		require.Equal(t, tc.want, got, fmt.Sprintf("input %v", tc.in))
	}
}
