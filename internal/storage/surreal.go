package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"

	"github.com/pulseim/pulse/internal/domain"
)

// SurrealStore persists messages in SurrealDB for deployments that
// already run one. The embedded pebble backend is the default.
type SurrealStore struct {
	db     *surrealdb.DB
	logger *slog.Logger
}

var _ domain.MessageStore = (*SurrealStore)(nil)

// SurrealConfig carries the connection parameters.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Pass      string
}

// NewSurrealStore connects and selects the namespace/database.
func NewSurrealStore(ctx context.Context, cfg SurrealConfig) (*SurrealStore, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w", err)
	}
	if cfg.User != "" {
		if _, err := db.SignIn(ctx, &surrealdb.Auth{Username: cfg.User, Password: cfg.Pass}); err != nil {
			return nil, fmt.Errorf("surrealdb signin: %w", err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("surrealdb use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return &SurrealStore{
		db:     db,
		logger: slog.Default().With("component", "storage.surreal"),
	}, nil
}

// Append implements domain.MessageStore.
func (s *SurrealStore) Append(ctx context.Context, msg *domain.Message) error {
	query := `CREATE type::thing('messages', $id) CONTENT $data`
	params := map[string]any{
		"id":   msg.ID,
		"data": msg,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Get implements domain.MessageStore.
func (s *SurrealStore) Get(ctx context.Context, id string) (*domain.Message, error) {
	query := `SELECT * FROM type::thing('messages', $id)`
	params := map[string]any{"id": id}

	results, err := surrealdb.Query[[]domain.Message](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query message %s: %w", id, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
	}
	msg := (*results)[0].Result[0]
	return &msg, nil
}

// Mutate implements domain.MessageStore. SurrealDB has no client-side
// closures, so this fetches, applies fn and writes the full record back.
func (s *SurrealStore) Mutate(ctx context.Context, id string, fn func(*domain.Message) error) (*domain.Message, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(msg); err != nil {
		return nil, err
	}

	query := `UPDATE type::thing('messages', $id) CONTENT $data`
	params := map[string]any{
		"id":   id,
		"data": msg,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return msg, nil
}

// Recent implements domain.MessageStore: newest limit messages for the
// room, returned oldest first.
func (s *SurrealStore) Recent(ctx context.Context, room domain.RoomKey, limit int) ([]*domain.Message, error) {
	query := `
		SELECT * FROM messages
		WHERE target.type = $target_type AND target.id = $target_id
		ORDER BY created_at DESC
		LIMIT $limit
	`
	params := map[string]any{
		"target_type": string(room.Type),
		"target_id":   room.ID,
		"limit":       limit,
	}

	results, err := surrealdb.Query[[]domain.Message](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query room %s: %w", room, err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	// Newest-first from the query; reverse into commit order.
	msgs := make([]*domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg := rows[i]
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// Close terminates the connection.
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}
