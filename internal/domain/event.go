package domain

import (
	"encoding/json"
	"time"
)

// Event types the pipeline recognizes. Task bodies may publish any other
// string; unrecognized types pass through to subscribers as opaque updates.
const (
	EventUpdate     = "update"
	EventTaskStart  = "task_start"
	EventStageStart = "stage_start"
	EventStageEnd   = "stage_end"
	EventProgress   = "progress"
	EventTaskEnd    = "task_end"
	EventTaskError  = "task_error"
)

// TerminalEvent reports whether an event type ends a live subscription.
func TerminalEvent(typ string) bool {
	return typ == EventTaskEnd || typ == EventTaskError
}

// Channel returns the pub/sub channel name for a task id. Producers and
// consumers derive it independently; the id is the only coordination needed.
func Channel(taskID string) string {
	return "task:" + taskID
}

// Event is one progress message published on a task's channel. Extra holds
// task-specific fields (progress ratio, stage counters, result data) that are
// flattened into the JSON object on the wire alongside the required fields.
type Event struct {
	TaskID    string
	Message   string
	Type      string
	Timestamp time.Time
	Extra     map[string]any
}

func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+4)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["task_id"] = e.TaskID
	m["message"] = e.Message
	m["type"] = e.Type
	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(m)
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["task_id"].(string); ok {
		e.TaskID = v
	}
	if v, ok := m["message"].(string); ok {
		e.Message = v
	}
	if v, ok := m["type"].(string); ok {
		e.Type = v
	}
	if v, ok := m["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.Timestamp = ts
		}
	}
	delete(m, "task_id")
	delete(m, "message")
	delete(m, "type")
	delete(m, "timestamp")
	if len(m) > 0 {
		e.Extra = m
	}
	return nil
}
