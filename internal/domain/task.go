package domain

import "time"

// TaskStatus follows the lifecycle vocabulary of the result backend:
// PENDING until a worker claims the invocation, STARTED while the body runs,
// then exactly one of the terminal states. RETRY marks an invocation parked
// for a delayed re-run after a failed attempt.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusStarted TaskStatus = "STARTED"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
	StatusRetry   TaskStatus = "RETRY"
	StatusRevoked TaskStatus = "REVOKED"
)

// Terminal reports whether no further status transitions are expected.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusRevoked
}

// Task is one invocation of a named background task. The ID is the sole
// correlation key across the queue, the status store, the event channel and
// any live subscribers.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Params      map[string]any `json:"params"`
	Status      TaskStatus     `json:"status"`
	Result      any            `json:"result,omitempty"`
	Traceback   string         `json:"traceback,omitempty"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	CreatedAt   time.Time      `json:"created_at"`
	NextRunAt   time.Time      `json:"next_run_at"`
}
