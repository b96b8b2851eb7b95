// Package bus provides an in-memory implementation of the pipeline's pub/sub
// contract. It keeps unit tests broker-free and serves single-process
// deployments where API and worker share one binary.
package bus

import (
	"context"
	"sync"
	"taskstream/internal/ports"
)

const defaultBuffer = 256

var _ ports.Bus = (*MemBus)(nil)

// MemBus fans every published payload out to all current subscribers of a
// channel, in publication order per subscriber. Payloads published while a
// channel has no subscribers are dropped, matching the Redis pub/sub
// semantics it stands in for.
type MemBus struct {
	mu      sync.RWMutex
	subs    map[string][]*memSub
	bufSize int
	closed  bool
}

func New() *MemBus {
	return &MemBus{
		subs:    make(map[string][]*memSub),
		bufSize: defaultBuffer,
	}
}

func (b *MemBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for _, sub := range b.subs[channel] {
		sub.send(payload)
	}
	return nil
}

func (b *MemBus) Subscribe(_ context.Context, channel string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memSub{
		bus:     b,
		channel: channel,
		ch:      make(chan []byte, b.bufSize),
	}
	b.subs[channel] = append(b.subs[channel], sub)
	return sub, nil
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subs = make(map[string][]*memSub)
	return nil
}

func (b *MemBus) remove(sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.channel]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.channel]) == 0 {
		delete(b.subs, sub.channel)
	}
}

type memSub struct {
	bus     *MemBus
	channel string
	ch      chan []byte
	mu      sync.Mutex
	closed  bool
}

func (s *memSub) Events() <-chan []byte { return s.ch }

func (s *memSub) Close() error {
	s.bus.remove(s)
	s.close()
	return nil
}

// close guards against double-close; Close and the bus shutdown can race.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers to the subscriber's channel, dropping the payload if the
// buffer is full or the subscription is closed.
func (s *memSub) send(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- payload:
	default:
	}
}
