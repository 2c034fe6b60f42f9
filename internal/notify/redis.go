package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulseim/pulse/internal/domain"
)

// keep bounds the per-user notification backlog.
const keep = 200

// RedisNotifier persists offline-visible alerts in a per-user redis
// list. These are not realtime pushes: clients fetch them after
// reconnecting, through whatever surface owns notifications.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ domain.Notifier = (*RedisNotifier)(nil)

// NewRedis connects and verifies the server is reachable.
func NewRedis(ctx context.Context, addr string) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisNotifier{
		rdb:    rdb,
		logger: slog.Default().With("component", "notify"),
	}, nil
}

type record struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Push implements domain.Notifier.
func (n *RedisNotifier) Push(ctx context.Context, userID string, notif domain.Notification) error {
	raw, err := json.Marshal(record{
		Event:   notif.Event,
		Payload: notif.Payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	key := "notify:" + userID
	pipe := n.rdb.Pipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, keep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification for %s: %w", userID, err)
	}
	return nil
}

// Pending returns the stored backlog for a user, newest first.
func (n *RedisNotifier) Pending(ctx context.Context, userID string) ([]domain.Notification, error) {
	raws, err := n.rdb.LRange(ctx, "notify:"+userID, 0, keep-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(raws))
	for _, raw := range raws {
		var r record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			n.logger.Warn("bad notification record", "user_id", userID, "error", err)
			continue
		}
		out = append(out, domain.Notification{Event: r.Event, Payload: r.Payload})
	}
	return out, nil
}

// Close releases the client.
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
