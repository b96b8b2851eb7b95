package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"taskstream/internal/domain"
	"taskstream/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ ports.Queue = (*Client)(nil)

func (c *Client) Enqueue(ctx context.Context, t domain.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	return c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.StreamKey,
		Values: map[string]interface{}{"task": b},
	}).Err()
}

// EnqueueRetry parks the full task record in the retry ZSET scored by its due
// time; the scheduler moves it back onto the stream once due.
func (c *Client) EnqueueRetry(ctx context.Context, t domain.Task, runAt time.Time) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	return c.Rdb.ZAdd(ctx, c.Cfg.RetryZSet, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: b,
	}).Err()
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Task, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.Cfg.StreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	raw := msg.Values["task"]
	var t domain.Task
	switch v := raw.(type) {
	case string:
		err = json.Unmarshal([]byte(v), &t)
	case []byte:
		err = json.Unmarshal(v, &t)
	default:
		return nil, "", fmt.Errorf("unexpected task payload type: %T", v)
	}
	if err != nil {
		return nil, "", fmt.Errorf("decode task from stream entry %s: %w", msg.ID, err)
	}
	return &t, msg.ID, nil
}

func (c *Client) Ack(ctx context.Context, streamID string) error {
	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}

func (c *Client) ToDLQ(ctx context.Context, streamID string, t domain.Task, reason string) error {
	b, err := json.Marshal(struct {
		domain.Task
		Reason string `json:"reason"`
	}{t, reason})
	if err != nil {
		return err
	}
	if err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.DLQStreamKey,
		Values: map[string]interface{}{"task": b},
	}).Err(); err != nil {
		return err
	}

	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}
