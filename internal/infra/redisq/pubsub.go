package redisq

import (
	"context"
	"taskstream/internal/ports"

	"github.com/redis/go-redis/v9"
)

var _ ports.Bus = (*Client)(nil)

// subscriptionBuffer absorbs bursts between Redis delivery and the relay's
// write loop. A full buffer drops the incoming payload rather than blocking
// the pump; the bus is fire-and-forget either way.
const subscriptionBuffer = 64

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Rdb.Publish(ctx, channel, payload).Err()
}

func (c *Client) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	ps := c.Rdb.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSub{ps: ps, ch: make(chan []byte, subscriptionBuffer)}
	go sub.pump()
	return sub, nil
}

type redisSub struct {
	ps *redis.PubSub
	ch chan []byte
}

func (s *redisSub) pump() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- []byte(msg.Payload):
		default:
		}
	}
}

func (s *redisSub) Events() <-chan []byte { return s.ch }

func (s *redisSub) Close() error { return s.ps.Close() }
