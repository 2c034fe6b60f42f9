package domain

import (
	"slices"
	"time"
)

// MessageType distinguishes plain text from attachment-style content.
const (
	MessageTypeText       = "text"
	MessageTypeImage      = "image"
	MessageTypeFile       = "file"
	MessageTypeAttachment = "attachment"
)

// Reaction is one (user, emoji) pair on a message. The set never holds
// duplicates.
type Reaction struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// ReadEntry records that a user has read the message. Append-only,
// at most one entry per user.
type ReadEntry struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// EditEntry preserves a superseded revision of the content.
type EditEntry struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

// Message is the persisted chat message. Once stored its identity never
// changes; deletion sets the tombstone flag so replies and threads keep
// a valid anchor.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"sender_id"`
	Target      RoomKey     `json:"target"`
	Content     string      `json:"content"`
	MessageType string      `json:"message_type"`
	ReplyTo     string      `json:"reply_to,omitempty"`
	ThreadID    string      `json:"thread_id,omitempty"`
	Reactions   []Reaction  `json:"reactions,omitempty"`
	ReadBy      []ReadEntry `json:"read_by,omitempty"`
	DeliveredTo []string    `json:"delivered_to,omitempty"`
	IsEdited    bool        `json:"is_edited,omitempty"`
	EditHistory []EditEntry `json:"edit_history,omitempty"`
	IsDeleted   bool        `json:"is_deleted,omitempty"`
	HiddenFor   []string    `json:"hidden_for,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AddReaction inserts the (user, emoji) pair. Returns false when the pair
// is already present, leaving the set unchanged.
func (m *Message) AddReaction(userID, emoji string) bool {
	if slices.Contains(m.Reactions, Reaction{UserID: userID, Emoji: emoji}) {
		return false
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji})
	return true
}

// RemoveReaction drops the (user, emoji) pair. Returns false when it was
// not present.
func (m *Message) RemoveReaction(userID, emoji string) bool {
	idx := slices.Index(m.Reactions, Reaction{UserID: userID, Emoji: emoji})
	if idx < 0 {
		return false
	}
	m.Reactions = slices.Delete(m.Reactions, idx, idx+1)
	return true
}

// MarkRead appends a read entry for the user. Re-marking is a no-op and
// returns false.
func (m *Message) MarkRead(userID string, at time.Time) bool {
	for _, e := range m.ReadBy {
		if e.UserID == userID {
			return false
		}
	}
	m.ReadBy = append(m.ReadBy, ReadEntry{UserID: userID, ReadAt: at})
	return true
}

// ApplyEdit archives the current content and replaces it.
func (m *Message) ApplyEdit(newContent string, at time.Time) {
	m.EditHistory = append(m.EditHistory, EditEntry{Content: m.Content, EditedAt: at})
	m.Content = newContent
	m.IsEdited = true
}

// HideFor filters the message from one participant's subsequent reads.
// Idempotent; has no effect on anyone else.
func (m *Message) HideFor(userID string) bool {
	if slices.Contains(m.HiddenFor, userID) {
		return false
	}
	m.HiddenFor = append(m.HiddenFor, userID)
	return true
}

// HiddenFrom reports whether the user deleted the message for themselves.
func (m *Message) HiddenFrom(userID string) bool {
	return slices.Contains(m.HiddenFor, userID)
}

// Redacted returns a copy suitable for reads: tombstoned messages keep
// their identity but shed content and history.
func (m *Message) Redacted() *Message {
	cp := *m
	if cp.IsDeleted {
		cp.Content = ""
		cp.EditHistory = nil
		cp.Reactions = nil
	}
	return &cp
}
