package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/google/uuid"
)

// Client is one peer bound to exactly one Room for its lifetime.
type Client struct {
	ID     string
	RoomID string

	conn    Conn
	room    *Room
	manager *RoomManager
	message chan domain.Envelope

	mu     sync.Mutex
	closed bool
}

func newClient(conn Conn, room *Room, manager *RoomManager, buffer int) *Client {
	return &Client{
		ID:      uuid.NewString(),
		RoomID:  room.ID,
		conn:    conn,
		room:    room,
		manager: manager,
		message: make(chan domain.Envelope, buffer), // buffered to avoid dead-locks on slow clients
	}
}

// Send queues an envelope for this client. It reports false when the client has
// left or its buffer is full.
func (c *Client) Send(event domain.Event, data json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.message <- domain.Envelope{Event: event, Data: data}:
		return true
	default:
		c.manager.logger.Warn(logging.Broker, logging.Relay, "client buffer full, dropping message", map[logging.ExtraKey]any{
			logging.RoomID:    c.RoomID,
			logging.ClientID:  c.ID,
			logging.EventName: string(event),
		})
		return false
	}
}

// Dispatch handles one inbound envelope. Unknown events are ignored.
func (c *Client) Dispatch(env domain.Envelope) {
	switch {
	case env.Event == domain.EventPing:
		c.Send(domain.EventPong, nil)
	case env.Event.IsRelayed():
		c.manager.EmitToOthers(c, env.Event, env.Data)
	}
}

// Leave removes the client from its room. Only the first call reports true.
func (c *Client) Leave() bool {
	return c.manager.Leave(c)
}

// WritePump drains queued envelopes to the connection and sends a keepalive ping
// every pingInterval. It returns once the client has left or a write fails.
func (c *Client) WritePump(pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case env, ok := <-c.message:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.manager.logger.Debug(logging.Broker, logging.Relay, "ws write failed", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.ErrorMessage: err.Error(),
				})
				_ = c.conn.Close()
				return
			}
		case <-tick:
			if err := c.conn.Ping(); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// close must be called at most once, by RoomManager.Leave.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	close(c.message)
}
