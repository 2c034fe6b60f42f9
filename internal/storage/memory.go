package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulseim/pulse/internal/domain"
)

// MemoryStore keeps messages in process memory. Used in tests and for
// local development; state is gone on restart.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Message
	byRoom map[domain.RoomKey][]string
}

var _ domain.MessageStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*domain.Message),
		byRoom: make(map[domain.RoomKey][]string),
	}
}

// Append implements domain.MessageStore.
func (s *MemoryStore) Append(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.byID[msg.ID] = &cp
	s.byRoom[msg.Target] = append(s.byRoom[msg.Target], msg.ID)
	return nil
}

// Get implements domain.MessageStore.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	cp := *msg
	return &cp, nil
}

// Mutate implements domain.MessageStore.
func (s *MemoryStore) Mutate(_ context.Context, id string, fn func(*domain.Message) error) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	cp := *msg
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.byID[id] = &cp
	out := cp
	return &out, nil
}

// Recent implements domain.MessageStore.
func (s *MemoryStore) Recent(_ context.Context, room domain.RoomKey, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byRoom[room]
	if len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]*domain.Message, 0, len(ids))
	for _, id := range ids {
		cp := *s.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

// Close implements domain.MessageStore.
func (s *MemoryStore) Close() error { return nil }
