package redisq

import (
	"context"
	"taskstream/internal/ports"
	"time"
)

var _ ports.Presence = (*Client)(nil)

// presenceTTL reaps sets left behind by processes that died without cleaning
// up. Live relays refresh it on every Add.
const presenceTTL = time.Hour

func presenceKey(taskID string) string { return "task-subs:" + taskID }

func (c *Client) Add(ctx context.Context, taskID, connID string) error {
	key := presenceKey(taskID)
	if err := c.Rdb.SAdd(ctx, key, connID).Err(); err != nil {
		return err
	}
	return c.Rdb.Expire(ctx, key, presenceTTL).Err()
}

func (c *Client) Remove(ctx context.Context, taskID, connID string) error {
	return c.Rdb.SRem(ctx, presenceKey(taskID), connID).Err()
}

func (c *Client) Count(ctx context.Context, taskID string) (int64, error) {
	return c.Rdb.SCard(ctx, presenceKey(taskID)).Result()
}
