package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/metrics"
	"github.com/pulseim/pulse/internal/pubsub"
)

// userState is the registry's record for one user.
type userState struct {
	conns         map[string]struct{}
	status        domain.PresenceStatus
	statusMessage string
	lastSeen      time.Time
}

// Registry owns the userID -> connection-set map, the only mutable
// shared state in the core. Every read-modify-write goes through one
// mutex so a stale disconnect can never flip a user offline after a
// newer connection has registered: the connection count is always
// re-read at mutation time, never carried across an async boundary.
type Registry struct {
	mu    sync.Mutex
	users map[string]*userState

	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds a registry publishing transitions to the bus.
func NewRegistry(publisher pubsub.Publisher, opts ...Option) *Registry {
	r := &Registry{
		users:     make(map[string]*userState),
		publisher: publisher,
		logger:    slog.Default().With("component", "presence"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect records a new connection for a user. The first connection
// transitions the user online and schedules a friend broadcast; further
// devices attach silently.
func (r *Registry) Connect(userID, connID string) {
	var t *Transition

	r.mu.Lock()
	u := r.users[userID]
	if u == nil {
		u = &userState{conns: make(map[string]struct{}), status: domain.StatusOffline}
		r.users[userID] = u
	}
	wasOnline := len(u.conns) > 0
	u.conns[connID] = struct{}{}
	u.lastSeen = r.now()

	if !wasOnline {
		u.status = domain.StatusOnline
		t = r.transitionLocked(userID, u, domain.EventFriendOnline)
		metrics.UsersOnline.Inc()
		r.logger.Info("user online", "user_id", userID, "conn_id", connID)
	} else {
		r.logger.Debug("additional device attached", "user_id", userID, "conn_id", connID, "devices", len(u.conns))
	}
	r.mu.Unlock()

	r.publish(t)
}

// Disconnect removes a connection. Only when the last device goes does
// the user transition offline; the decision is made from the live set
// under the lock, never from a captured snapshot.
func (r *Registry) Disconnect(userID, connID string) {
	var t *Transition

	r.mu.Lock()
	u := r.users[userID]
	if u == nil {
		r.mu.Unlock()
		return
	}
	if _, held := u.conns[connID]; !held {
		// Stale disconnect for a connection we no longer track.
		r.mu.Unlock()
		return
	}
	delete(u.conns, connID)
	u.lastSeen = r.now()

	if len(u.conns) == 0 {
		u.status = domain.StatusOffline
		t = r.transitionLocked(userID, u, domain.EventFriendOffline)
		metrics.UsersOnline.Dec()
		r.logger.Info("user offline", "user_id", userID, "conn_id", connID)
	} else {
		r.logger.Debug("device detached, user still online", "user_id", userID, "devices", len(u.conns))
	}
	r.mu.Unlock()

	r.publish(t)
}

// ChangeStatus validates and applies an explicit status change, then
// broadcasts it to friends regardless of any online/offline transition.
func (r *Registry) ChangeStatus(ctx context.Context, userID string, status domain.PresenceStatus, statusMessage string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	r.mu.Lock()
	u := r.users[userID]
	if u == nil {
		u = &userState{conns: make(map[string]struct{})}
		r.users[userID] = u
	}
	u.status = status
	u.statusMessage = statusMessage
	u.lastSeen = r.now()
	t := r.transitionLocked(userID, u, domain.EventFriendStatusChanged)
	r.mu.Unlock()

	r.publish(t)
	return nil
}

// IsOnline reports whether the user holds at least one active connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userID]
	return u != nil && len(u.conns) > 0
}

// State returns the user's aggregate presence.
func (r *Registry) State(userID string) domain.PresenceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil {
		return domain.PresenceState{UserID: userID, Status: domain.StatusOffline}
	}
	return domain.PresenceState{
		UserID:        userID,
		Online:        len(u.conns) > 0,
		Status:        u.status,
		StatusMessage: u.statusMessage,
		LastSeen:      u.lastSeen,
	}
}

// ConnectionCount returns the number of active connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.users[userID]; u != nil {
		return len(u.conns)
	}
	return 0
}

// OnlineUsers lists every user with at least one active connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.users))
	for id, u := range r.users {
		if len(u.conns) > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) transitionLocked(userID string, u *userState, event string) *Transition {
	return &Transition{
		UserID:        userID,
		Event:         event,
		Status:        u.status,
		StatusMessage: u.statusMessage,
		LastSeen:      u.lastSeen,
	}
}

func (r *Registry) publish(t *Transition) {
	if t == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		r.logger.Error("failed to marshal transition", "error", err)
		return
	}
	metrics.PresenceTransitions.WithLabelValues(t.Event).Inc()
	if err := r.publisher.Publish(context.Background(), pubsub.Message{
		Topic:   TopicTransition,
		UserID:  t.UserID,
		Payload: payload,
	}); err != nil {
		r.logger.Error("failed to publish transition", "user_id", t.UserID, "event", t.Event, "error", err)
	}
}
