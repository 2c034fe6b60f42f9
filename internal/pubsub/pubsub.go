package pubsub

import "context"

// Message is the unit passed between components on the in-process bus.
type Message struct {
	// Topic identifies the channel (e.g. "presence.transition").
	Topic string
	// UserID identifies the user the event concerns, when there is one.
	UserID string
	// Payload is the raw event data, normally JSON.
	Payload []byte
	// Metadata carries arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes one received message. A non-nil error nacks it.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus. Subscribe returns once the
// subscription is active; handling runs in the background.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
