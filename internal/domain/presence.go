package domain

import "time"

// PresenceStatus is the user-visible status enum. Offline is derived from
// the connection count; the others are set explicitly.
type PresenceStatus string

const (
	StatusOnline       PresenceStatus = "online"
	StatusAway         PresenceStatus = "away"
	StatusBusy         PresenceStatus = "busy"
	StatusDoNotDisturb PresenceStatus = "do-not-disturb"
	StatusOffline      PresenceStatus = "offline"
)

// Valid reports whether s is a member of the status enum.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusDoNotDisturb, StatusOffline:
		return true
	}
	return false
}

// PresenceState is a user's aggregate presence across all of their
// simultaneously active connections.
type PresenceState struct {
	UserID        string         `json:"user_id"`
	Online        bool           `json:"online"`
	Status        PresenceStatus `json:"status"`
	StatusMessage string         `json:"status_message,omitempty"`
	LastSeen      time.Time      `json:"last_seen"`
}
