// Package roster holds in-memory implementations of the social-graph
// collaborators (friend list, channel/group/community membership). In a
// full deployment these are backed by the owning domain services; the
// realtime core only ever talks to the interfaces.
package roster

import (
	"context"
	"sync"

	"github.com/pulseim/pulse/internal/domain"
)

// MemoryFriends is a symmetric in-memory friend graph.
type MemoryFriends struct {
	mu    sync.RWMutex
	edges map[string]map[string]struct{}
}

var _ domain.FriendStore = (*MemoryFriends)(nil)

// NewMemoryFriends returns an empty friend graph.
func NewMemoryFriends() *MemoryFriends {
	return &MemoryFriends{edges: make(map[string]map[string]struct{})}
}

// Befriend links two users both ways.
func (f *MemoryFriends) Befriend(a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.link(a, b)
	f.link(b, a)
}

func (f *MemoryFriends) link(from, to string) {
	if f.edges[from] == nil {
		f.edges[from] = make(map[string]struct{})
	}
	f.edges[from][to] = struct{}{}
}

// Friends implements domain.FriendStore.
func (f *MemoryFriends) Friends(_ context.Context, userID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.edges[userID]))
	for id := range f.edges[userID] {
		out = append(out, id)
	}
	return out, nil
}

// MemoryMembership tracks room rosters in memory.
type MemoryMembership struct {
	mu      sync.RWMutex
	members map[domain.RoomKey]map[string]struct{}
}

var _ domain.MembershipStore = (*MemoryMembership)(nil)

// NewMemoryMembership returns an empty roster set.
func NewMemoryMembership() *MemoryMembership {
	return &MemoryMembership{members: make(map[domain.RoomKey]map[string]struct{})}
}

// Add enrolls a user in a room.
func (m *MemoryMembership) Add(room domain.RoomKey, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[room] == nil {
		m.members[room] = make(map[string]struct{})
	}
	m.members[room][userID] = struct{}{}
}

// IsMember implements domain.MembershipStore.
func (m *MemoryMembership) IsMember(_ context.Context, userID string, room domain.RoomKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[room][userID]
	return ok, nil
}
