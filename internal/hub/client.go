package hub

import (
	"log/slog"
	"sync"

	"github.com/pulseim/pulse/internal/metrics"
)

// Client is the hub's view of one connected device: a connection
// identity plus a buffered outbound queue. The transport layer owns the
// socket and drains Send.
type Client struct {
	// ID is the unique connection identifier.
	ID string
	// UserID is the authenticated owner of the connection.
	UserID string

	mu   sync.RWMutex
	send chan []byte
}

// NewClient builds a client with a buffered outbound queue.
func NewClient(id, userID string, buffer int) *Client {
	return &Client{ID: id, UserID: userID, send: make(chan []byte, buffer)}
}

// Send returns the outbound queue the transport's write pump drains.
// Returns nil once the client is closed.
func (c *Client) Outbound() <-chan []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send
}

// enqueue queues a payload without blocking. A full buffer means the
// client is lagging; the event is dropped rather than stalling the hub.
func (c *Client) enqueue(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		metrics.DroppedSends.Inc()
		slog.Warn("client send buffer full, dropping event", "conn_id", c.ID, "user_id", c.UserID)
	}
}

// close shuts the outbound queue. Safe against concurrent enqueues.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}
