package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"time"
)

var _ ports.Results = (*Client)(nil)

// resultTTL bounds how long a finished invocation stays queryable. After
// expiry the status endpoint reports the id as PENDING again, same as an id
// that never existed; callers cannot tell the two apart.
const resultTTL = 24 * time.Hour

func metaKey(id string) string { return "task-meta:" + id }

func (c *Client) Save(ctx context.Context, t domain.Task) error {
	m := map[string]any{
		"name":         t.Name,
		"status":       string(t.Status),
		"attempts":     t.Attempts,
		"max_attempts": t.MaxAttempts,
		"created_at":   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"next_run_at":  t.NextRunAt.UnixMilli(),
		"traceback":    t.Traceback,
	}
	if t.Params != nil {
		b, err := json.Marshal(t.Params)
		if err != nil {
			return fmt.Errorf("marshal params for task %s: %w", t.ID, err)
		}
		m["params"] = b
	}
	if t.Result != nil {
		b, err := json.Marshal(t.Result)
		if err != nil {
			return fmt.Errorf("marshal result for task %s: %w", t.ID, err)
		}
		m["result"] = b
	}

	key := metaKey(t.ID)
	if err := c.Rdb.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return c.Rdb.Expire(ctx, key, resultTTL).Err()
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Task, error) {
	h, err := c.Rdb.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}

	t := &domain.Task{
		ID:        id,
		Name:      h["name"],
		Status:    domain.TaskStatus(h["status"]),
		Traceback: h["traceback"],
	}
	t.Attempts, _ = strconv.Atoi(h["attempts"])
	t.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	if v, err := time.Parse(time.RFC3339Nano, h["created_at"]); err == nil {
		t.CreatedAt = v
	}
	if ms, err := strconv.ParseInt(h["next_run_at"], 10, 64); err == nil && ms > 0 {
		t.NextRunAt = time.UnixMilli(ms)
	}
	if raw, ok := h["params"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &t.Params)
	}
	if raw, ok := h["result"]; ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &t.Result)
	}
	return t, nil
}
