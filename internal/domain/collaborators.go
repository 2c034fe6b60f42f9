package domain

import "context"

// Authenticator verifies the signed session credential presented at
// connect time and resolves the owning user. Token issuance lives
// outside this core.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// FriendStore exposes the friend graph owned by the social domain.
type FriendStore interface {
	Friends(ctx context.Context, userID string) ([]string, error)
}

// MembershipStore answers whether a user may subscribe to a channel,
// group or community room. Membership rules live entirely in the owning
// domain model; the core re-verifies on every join and caches nothing.
type MembershipStore interface {
	IsMember(ctx context.Context, userID string, room RoomKey) (bool, error)
}

// MessageStore is the durable system of record for messages. The
// in-memory realtime layer is a best-effort overlay and never
// authoritative beyond the lifetime of the current connections.
type MessageStore interface {
	// Append persists a new message. Per-room read order equals append
	// order for that room.
	Append(ctx context.Context, msg *Message) error

	// Get returns a message by ID, ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Message, error)

	// Mutate applies fn to the stored message under the store's write
	// lock and persists the result. fn returning an error aborts the
	// write. The updated message is returned.
	Mutate(ctx context.Context, id string, fn func(*Message) error) (*Message, error)

	// Recent returns up to limit messages for a room in commit order,
	// oldest first.
	Recent(ctx context.Context, room RoomKey, limit int) ([]*Message, error)

	Close() error
}

// Notification is an offline-visible alert handed to the Notifier when a
// recipient has no active connection.
type Notification struct {
	Event   string `json:"event"`
	Payload []byte `json:"payload"`
}

// Notifier is the optional persisted-notification collaborator. Distinct
// from realtime pushes: these are fetched later, not delivered in-band.
type Notifier interface {
	Push(ctx context.Context, userID string, n Notification) error
}
