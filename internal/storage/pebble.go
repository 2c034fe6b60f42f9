package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/pulseim/pulse/internal/domain"
)

// Key layout:
//
//	m/<message-id>          -> message JSON
//	r/<room>/<seq:8 bytes>  -> message ID (per-room commit-order index)
//	c/<room>                -> last allocated seq
//
// The room index makes Recent a bounded prefix scan in commit order.
const (
	prefixMessage = "m/"
	prefixRoom    = "r/"
	prefixCounter = "c/"
)

// PebbleStore is the embedded message store. It is the default backend:
// a single directory on disk, no external service.
type PebbleStore struct {
	db     *pebble.DB
	logger *slog.Logger

	// mu serializes writes so seq allocation and read-modify-write
	// mutations are atomic with respect to each other.
	mu sync.Mutex
}

var _ domain.MessageStore = (*PebbleStore)(nil)

// OpenPebble opens (creating if needed) the store at path.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{
		db:     db,
		logger: slog.Default().With("component", "storage.pebble"),
	}, nil
}

// Append implements domain.MessageStore.
func (s *PebbleStore) Append(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSeq(msg.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	val, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	batch := s.db.NewBatch()
	if err := batch.Set(messageKey(msg.ID), val, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := batch.Set(roomIndexKey(msg.Target, seq), []byte(msg.ID), nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Get implements domain.MessageStore.
func (s *PebbleStore) Get(_ context.Context, id string) (*domain.Message, error) {
	return s.get(id)
}

// Mutate implements domain.MessageStore. The store lock makes the
// read-apply-write cycle atomic.
func (s *PebbleStore) Mutate(_ context.Context, id string, fn func(*domain.Message) error) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(msg); err != nil {
		return nil, err
	}

	val, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := s.db.Set(messageKey(id), val, pebble.Sync); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return msg, nil
}

// Recent implements domain.MessageStore: the newest limit messages for
// the room, returned oldest first (commit order).
func (s *PebbleStore) Recent(_ context.Context, room domain.RoomKey, limit int) ([]*domain.Message, error) {
	lower := []byte(prefixRoom + room.String() + "/")
	upper := append(append([]byte{}, lower...), 0xff)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("room scan for %s: %w", room, err)
	}
	defer iter.Close()

	ids := make([]string, 0, limit)
	for ok := iter.Last(); ok && len(ids) < limit; ok = iter.Prev() {
		ids = append(ids, string(iter.Value()))
	}

	// Reverse so callers see commit order.
	msgs := make([]*domain.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		msg, err := s.get(ids[i])
		if err != nil {
			s.logger.Warn("dangling room index entry", "room", room.String(), "message_id", ids[i])
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) get(id string) (*domain.Message, error) {
	val, closer, err := s.db.Get(messageKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	defer closer.Close()

	var msg domain.Message
	if err := json.Unmarshal(val, &msg); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &msg, nil
}

// nextSeq allocates the next per-room sequence number. Caller holds mu.
func (s *PebbleStore) nextSeq(room domain.RoomKey) (uint64, error) {
	key := []byte(prefixCounter + room.String())

	var seq uint64
	val, closer, err := s.db.Get(key)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		seq = binary.BigEndian.Uint64(val)
		closer.Close()
	}

	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := s.db.Set(key, buf, pebble.Sync); err != nil {
		return 0, err
	}
	return seq, nil
}

func messageKey(id string) []byte {
	return []byte(prefixMessage + id)
}

func roomIndexKey(room domain.RoomKey, seq uint64) []byte {
	key := make([]byte, 0, len(prefixRoom)+len(room.String())+9)
	key = append(key, prefixRoom...)
	key = append(key, room.String()...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}
