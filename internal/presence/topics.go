package presence

import (
	"time"

	"github.com/pulseim/pulse/internal/domain"
)

// TopicTransition carries presence transitions from the registry to the
// friend fan-out. Keeping this on the bus means the registry never
// blocks on friend-list lookups.
const TopicTransition = "presence.transition"

// Transition is the payload published on TopicTransition.
type Transition struct {
	UserID        string                `json:"user_id"`
	Event         string                `json:"event"` // friend_online / friend_offline / friend_status_changed
	Status        domain.PresenceStatus `json:"status"`
	StatusMessage string                `json:"status_message,omitempty"`
	LastSeen      time.Time             `json:"last_seen"`
}
