package tasks

import (
	"context"
	"encoding/json"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
)

// Streamer publishes progress events for exactly one task invocation. It is
// publish-and-forget: a failed publish is logged at warn and swallowed.
// Progress is best-effort UX; task correctness flows through the status
// store, never through the bus.
type Streamer struct {
	taskID string
	bus    ports.Bus
}

func NewStreamer(taskID string, bus ports.Bus) *Streamer {
	return &Streamer{taskID: taskID, bus: bus}
}

func (s *Streamer) TaskID() string { return s.taskID }

// Emit publishes one event, stamped with the current UTC time, on the task's
// channel. It never blocks on subscriber presence.
func (s *Streamer) Emit(ctx context.Context, message, typ string, extra map[string]any) {
	ev := domain.Event{
		TaskID:    s.taskID,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Extra:     extra,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task_id", s.taskID).Msg("dropping unencodable progress event")
		return
	}
	if err := s.bus.Publish(ctx, domain.Channel(s.taskID), payload); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task_id", s.taskID).Str("type", typ).Msg("dropping progress event")
	}
}

// Progress emits a progress event with a normalized ratio. A zero total yields
// ratio 0 rather than an error.
func (s *Streamer) Progress(ctx context.Context, message string, current, total int, extra map[string]any) {
	ratio := 0.0
	if total > 0 {
		ratio = float64(current) / float64(total)
	}
	fields := map[string]any{
		"progress": ratio,
		"current":  current,
		"total":    total,
	}
	for k, v := range extra {
		fields[k] = v
	}
	s.Emit(ctx, message, domain.EventProgress, fields)
}

// Stage emits a stage_start event and returns the function that emits the
// matching stage_end. Defer it immediately so the bracket closes on every
// exit path, including panic:
//
//	defer stream.Stage(ctx, "Generating image", 1, 4)()
//
// Pass zero for stage/total when the task has no fixed stage count.
func (s *Streamer) Stage(ctx context.Context, message string, stage, total int) func() {
	extra := map[string]any{}
	if stage > 0 {
		extra["stage"] = stage
	}
	if total > 0 {
		extra["total_stages"] = total
	}
	s.Emit(ctx, message, domain.EventStageStart, extra)
	return func() {
		s.Emit(ctx, "Completed: "+message, domain.EventStageEnd, nil)
	}
}
