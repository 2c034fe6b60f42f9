package friends

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/presence"
	"github.com/pulseim/pulse/internal/pubsub"
)

// Fanout turns presence transitions into friend_* events. On every
// transition it fetches the user's friend list and delivers to each
// friend currently holding an active connection; friends without one
// get a persisted notification instead, when a notifier is configured.
// Cost is O(friend count) per transition, never per message.
type Fanout struct {
	friends  domain.FriendStore
	registry *presence.Registry
	hub      *hub.Hub
	notifier domain.Notifier
	logger   *slog.Logger
}

// New builds a fan-out. notifier may be nil.
func New(friends domain.FriendStore, registry *presence.Registry, h *hub.Hub, notifier domain.Notifier) *Fanout {
	return &Fanout{
		friends:  friends,
		registry: registry,
		hub:      h,
		notifier: notifier,
		logger:   slog.Default().With("component", "friends"),
	}
}

// Start subscribes to the presence transition topic.
func (f *Fanout) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	return subscriber.Subscribe(ctx, presence.TopicTransition, f.handleTransition)
}

// friendEvent is the friend_online / friend_offline / friend_status_changed payload.
type friendEvent struct {
	UserID        string                `json:"user_id"`
	Status        domain.PresenceStatus `json:"status"`
	StatusMessage string                `json:"status_message,omitempty"`
	LastSeen      time.Time             `json:"last_seen"`
}

func (f *Fanout) handleTransition(ctx context.Context, msg pubsub.Message) error {
	var t presence.Transition
	if err := json.Unmarshal(msg.Payload, &t); err != nil {
		f.logger.Error("bad transition payload", "error", err)
		// Not retryable; ack and move on.
		return nil
	}

	friendIDs, err := f.friends.Friends(ctx, t.UserID)
	if err != nil {
		f.logger.Error("friend list lookup failed", "user_id", t.UserID, "error", err)
		return err
	}

	event := friendEvent{
		UserID:        t.UserID,
		Status:        t.Status,
		StatusMessage: t.StatusMessage,
		LastSeen:      t.LastSeen,
	}

	delivered := 0
	for _, friendID := range friendIDs {
		if f.registry.IsOnline(friendID) {
			f.hub.SendToUser(friendID, t.Event, event)
			delivered++
			continue
		}
		if f.notifier != nil {
			payload, _ := json.Marshal(event)
			if err := f.notifier.Push(ctx, friendID, domain.Notification{Event: t.Event, Payload: payload}); err != nil {
				f.logger.Warn("notification push failed", "friend_id", friendID, "error", err)
			}
		}
	}

	f.logger.Debug("presence fanned out",
		"user_id", t.UserID,
		"event", t.Event,
		"friends", len(friendIDs),
		"delivered", delivered)
	return nil
}
