package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const metaKeyUserID = "user_id"

// WatermillBus implements Publisher and Subscriber on watermill's
// in-memory GoChannel transport.
type WatermillBus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// NewWatermillBus builds an in-process bus. All subscribers of a topic
// receive every message published to it.
func NewWatermillBus() *WatermillBus {
	logger := watermill.NewSlogLogger(slog.Default())
	ch := gochannel.NewGoChannel(gochannel.Config{}, logger)
	return &WatermillBus{pub: ch, sub: ch, logger: logger}
}

// Publish implements Publisher.
func (b *WatermillBus) Publish(ctx context.Context, msg Message) error {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wm.Metadata.Set(metaKeyUserID, msg.UserID)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	return b.pub.Publish(msg.Topic, wm)
}

// Subscribe implements Subscriber. The handler loop runs in its own
// goroutine until the subscription channel closes.
func (b *WatermillBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			msg := Message{
				Topic:    topic,
				UserID:   wm.Metadata.Get(metaKeyUserID),
				Payload:  wm.Payload,
				Metadata: map[string]string{},
			}
			for k, v := range wm.Metadata {
				if k != metaKeyUserID {
					msg.Metadata[k] = v
				}
			}

			if err := handler(ctx, msg); err != nil {
				slog.Error("pubsub handler failed", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
				continue
			}
			wm.Ack()
		}
		slog.Debug("subscription loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts the bus down; pending subscriptions drain and stop.
func (b *WatermillBus) Close() error {
	return b.sub.Close()
}
