package domain

import "fmt"

// TargetType identifies the kind of broadcast target a room addresses.
type TargetType string

const (
	TargetUser      TargetType = "user"
	TargetChannel   TargetType = "channel"
	TargetGroup     TargetType = "group"
	TargetCommunity TargetType = "community"
)

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetUser, TargetChannel, TargetGroup, TargetCommunity:
		return true
	}
	return false
}

// RoomKey addresses a logical broadcast group. It is a tagged value rather
// than a concatenated string so a channel ID can never collide with a user
// ID that happens to share the same text.
type RoomKey struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

// NewRoomKey builds a RoomKey, rejecting unknown target types and empty IDs.
func NewRoomKey(t TargetType, id string) (RoomKey, error) {
	if !t.Valid() {
		return RoomKey{}, fmt.Errorf("%w: unknown target type %q", ErrValidation, t)
	}
	if id == "" {
		return RoomKey{}, fmt.Errorf("%w: empty target id", ErrValidation)
	}
	return RoomKey{Type: t, ID: id}, nil
}

// PersonalRoom returns the room every connection of a user is subscribed to.
// Events addressed to a user land here so all of their devices see them.
func PersonalRoom(userID string) RoomKey {
	return RoomKey{Type: TargetUser, ID: userID}
}

// String renders the key for logs and storage indexes.
func (k RoomKey) String() string {
	return string(k.Type) + ":" + k.ID
}
