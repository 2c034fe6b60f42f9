package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
)

// Broadcaster fans out the ephemeral and semi-ephemeral event families:
// typing indicators (never persisted), reactions and read receipts
// (persisted on the message, pushed best-effort). Recipients offline at
// emission time reconstruct state later from the store, never from the
// realtime layer.
type Broadcaster struct {
	store  domain.MessageStore
	hub    *hub.Hub
	logger *slog.Logger
	now    func() time.Time
}

// New builds a broadcaster.
func New(store domain.MessageStore, h *hub.Hub) *Broadcaster {
	return &Broadcaster{
		store:  store,
		hub:    h,
		logger: slog.Default().With("component", "events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// typingEvent is the user_typing payload.
type typingEvent struct {
	UserID   string         `json:"user_id"`
	Room     domain.RoomKey `json:"room"`
	IsTyping bool           `json:"is_typing"`
	At       time.Time      `json:"at"`
}

// Typing broadcasts a typing indicator to the room, excluding the
// originating connection. Best-effort, no retry; clients treat the
// signal as stale after a bounded interval without refresh.
func (b *Broadcaster) Typing(userID, connID string, room domain.RoomKey, isTyping bool) {
	b.hub.BroadcastToTarget(room, domain.EventUserTyping, typingEvent{
		UserID:   userID,
		Room:     room,
		IsTyping: isTyping,
		At:       b.now(),
	}, connID)
}

// reactionEvent is the reaction_added / reaction_removed delta payload.
type reactionEvent struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// Reaction adds or removes one (user, emoji) pair on a message. Adding a
// present pair or removing an absent one is a no-op: state and room are
// untouched and nothing is broadcast.
func (b *Broadcaster) Reaction(ctx context.Context, userID, messageID, emoji string, add bool) error {
	changed := false
	msg, err := b.store.Mutate(ctx, messageID, func(m *domain.Message) error {
		if add {
			changed = m.AddReaction(userID, emoji)
		} else {
			changed = m.RemoveReaction(userID, emoji)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	event := domain.EventReactionAdded
	if !add {
		event = domain.EventReactionRemoved
	}
	b.hub.BroadcastToMessageScope(msg.Target, msg.SenderID, event, reactionEvent{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return nil
}

// readEvent is the message_read payload.
type readEvent struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

// MarkRead appends the reader to the message's readBy set. Idempotent;
// the first call notifies the original sender's active connections only.
// Read state is a signal from reader to author, not a room broadcast.
func (b *Broadcaster) MarkRead(ctx context.Context, readerID, messageID string) error {
	readAt := b.now()
	changed := false
	msg, err := b.store.Mutate(ctx, messageID, func(m *domain.Message) error {
		changed = m.MarkRead(readerID, readAt)
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	b.hub.SendToUser(msg.SenderID, domain.EventMessageRead, readEvent{
		MessageID: messageID,
		UserID:    readerID,
		ReadAt:    readAt,
	})
	return nil
}
