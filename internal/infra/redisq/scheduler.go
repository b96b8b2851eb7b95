package redisq

import (
	"context"
	"strconv"
	"taskstream/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.RetryScheduler = (*Scheduler)(nil)

// Scheduler moves due retries from the ZSET back onto the queue stream. One
// scheduler runs per worker process; ZREM after XADD makes the move idempotent
// enough for at-least-once semantics (a duplicate move re-runs the task, which
// the queue already permits).
type Scheduler struct {
	C        *Client
	Interval time.Duration
}

func NewScheduler(c *Client, interval time.Duration) *Scheduler {
	return &Scheduler{C: c, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.moveDue(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("retry scheduler pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) moveDue(ctx context.Context) error {
	entries, err := s.C.Rdb.ZRangeByScore(ctx, s.C.Cfg.RetryZSet, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmtFloat(nowMs()),
		Offset: 0,
		Count:  128,
	}).Result()

	if err != nil || len(entries) == 0 {
		return err
	}

	for _, raw := range entries {
		if err := s.C.Rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: s.C.Cfg.StreamKey,
			Values: map[string]interface{}{"task": raw},
		}).Err(); err != nil {
			return err
		}
		if err := s.C.Rdb.ZRem(ctx, s.C.Cfg.RetryZSet, raw).Err(); err != nil {
			return err
		}
	}
	return nil
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
