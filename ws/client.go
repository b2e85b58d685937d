package ws

import (
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Frame is the wire format for inbound and outbound game events.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client wraps a live websocket connection together with the identity the
// gateway attached before the upgrade. The connection allows only one
// concurrent writer, so every write goes through the client's mutex.
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func NewClient(id, userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
	}
}

// WriteEvent sends a typed event frame to the client.
func (c *Client) WriteEvent(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Frame{Event: event, Data: payload})
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
