package tasks

import (
	"context"
	"fmt"
	"taskstream/internal/domain"
	"time"
)

// ExampleStreaming simulates a long-running task that reports one progress
// step per second. It exists to demo the live-update pipeline end to end.
//
// Params: duration (steps, default 10), step_ms (delay per step, default 1000).
func ExampleStreaming(ctx context.Context, stream *Streamer, params map[string]any) (any, error) {
	duration := intParam(params, "duration", 10)
	stepDelay := time.Duration(intParam(params, "step_ms", 1000)) * time.Millisecond

	stream.Emit(ctx, "Starting example streaming task", domain.EventTaskStart, nil)

	for i := 1; i <= duration; i++ {
		stream.Progress(ctx, fmt.Sprintf("Processing step %d/%d", i, duration), i, duration, nil)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(stepDelay):
		}
	}

	stream.Emit(ctx, "Example streaming task completed successfully", domain.EventTaskEnd, nil)

	return map[string]any{
		"status":  "completed",
		"message": fmt.Sprintf("Processed %d steps", duration),
	}, nil
}

// intParam reads a numeric parameter that may arrive as float64 (JSON), int,
// or a stringified number.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
