package ports

import "context"

// Bus is fire-and-forget pub/sub: a subscriber that was not connected at
// publish time never sees that payload, and every current subscriber of a
// channel receives every payload independently, in publication order.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a long-lived handle onto one channel. Events is closed when
// the subscription ends, either via Close or because the transport failed.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// Presence mirrors which connections exist for a task across processes. It is
// introspection only: delivery always goes through the Bus, because sockets
// cannot be handed between processes.
type Presence interface {
	Add(ctx context.Context, taskID, connID string) error
	Remove(ctx context.Context, taskID, connID string) error
	Count(ctx context.Context, taskID string) (int64, error)
}
