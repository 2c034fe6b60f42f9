package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/metrics"
)

// Envelope is the outbound wire frame: an event name plus its payload.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks every live connection and which rooms it subscribes to, and
// is the single fan-out primitive for the whole core. All feature
// handlers route deliveries through BroadcastToTarget / SendToUser /
// SendToConn instead of re-deriving recipient sets themselves.
type Hub struct {
	mu sync.RWMutex

	// conns indexes clients by connection ID.
	conns map[string]*Client
	// byUser indexes each user's simultaneously connected devices.
	byUser map[string]map[string]*Client
	// rooms holds the current subscriber set per room key.
	rooms map[domain.RoomKey]map[string]*Client
	// subs is the reverse index used for the disconnect cascade.
	subs map[string]map[domain.RoomKey]struct{}

	logger *slog.Logger
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{
		conns:  make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		rooms:  make(map[domain.RoomKey]map[string]*Client),
		subs:   make(map[string]map[domain.RoomKey]struct{}),
		logger: slog.Default().With("component", "hub"),
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID] = c
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[string]*Client)
	}
	h.byUser[c.UserID][c.ID] = c
	h.subs[c.ID] = make(map[domain.RoomKey]struct{})

	metrics.ConnectionsActive.Inc()
	h.logger.Debug("client registered", "conn_id", c.ID, "user_id", c.UserID)
}

// Unregister removes a client from every room it joined and closes its
// outbound queue. Idempotent.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}

	for key := range h.subs[connID] {
		delete(h.rooms[key], connID)
		if len(h.rooms[key]) == 0 {
			delete(h.rooms, key)
		}
	}
	delete(h.subs, connID)
	delete(h.conns, connID)

	if devices := h.byUser[c.UserID]; devices != nil {
		delete(devices, connID)
		if len(devices) == 0 {
			delete(h.byUser, c.UserID)
		}
	}

	c.close()
	metrics.ConnectionsActive.Dec()
	h.logger.Debug("client unregistered", "conn_id", connID, "user_id", c.UserID)
}

// Join subscribes a connection to a room. Idempotent. Authorization is
// the router's job; the hub only tracks membership.
func (h *Hub) Join(connID string, key domain.RoomKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[string]*Client)
	}
	h.rooms[key][connID] = c
	h.subs[connID][key] = struct{}{}
	return true
}

// Leave unsubscribes a connection from a room. Idempotent.
func (h *Hub) Leave(connID string, key domain.RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[key]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
	if s, ok := h.subs[connID]; ok {
		delete(s, key)
	}
}

// BroadcastToTarget fans an event out to every current subscriber of the
// room, skipping any connection IDs in exclude.
func (h *Hub) BroadcastToTarget(key domain.RoomKey, event string, payload any, exclude ...string) {
	frame, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, c := range h.rooms[key] {
		if _, excluded := skip[connID]; excluded {
			continue
		}
		c.enqueue(frame)
		metrics.FanoutDeliveries.WithLabelValues(event).Inc()
	}
}

// BroadcastToMessageScope delivers to everywhere a persisted message
// belongs: the target room, plus the sender's personal room when the
// target is another user, so all of the sender's devices see the echo.
func (h *Hub) BroadcastToMessageScope(target domain.RoomKey, senderID, event string, payload any) {
	h.BroadcastToTarget(target, event, payload)
	if target.Type == domain.TargetUser && target.ID != senderID {
		h.BroadcastToTarget(domain.PersonalRoom(senderID), event, payload)
	}
}

// SendToUser delivers an event to every active connection of one user.
func (h *Hub) SendToUser(userID, event string, payload any) {
	frame, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.byUser[userID] {
		c.enqueue(frame)
		metrics.FanoutDeliveries.WithLabelValues(event).Inc()
	}
}

// SendToConn delivers a point-to-point frame (acks, error acks) to a
// single connection only.
func (h *Hub) SendToConn(connID, event string, payload any) {
	frame, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.conns[connID]; ok {
		c.enqueue(frame)
	}
}

// RoomMembers returns the distinct user IDs currently subscribed to a room.
func (h *Hub) RoomMembers(key domain.RoomKey) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	members := make([]string, 0, len(h.rooms[key]))
	for _, c := range h.rooms[key] {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}
		members = append(members, c.UserID)
	}
	return members
}

// Rooms returns the rooms a connection currently subscribes to.
func (h *Hub) Rooms(connID string) []domain.RoomKey {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]domain.RoomKey, 0, len(h.subs[connID]))
	for key := range h.subs[connID] {
		keys = append(keys, key)
	}
	return keys
}
