package chatws

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const sendBufferSize = 32

// Conn is the subset of *websocket.Conn the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// FrameHandler processes inbound frames for a client and cleans up after it.
type FrameHandler interface {
	HandleFrame(ctx context.Context, client *Client, payload []byte)
	Disconnect(client *Client)
}

type Client struct {
	id      string
	hub     *Hub
	conn    Conn
	userID  string
	role    string
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient builds a connection for an authenticated identity. A nil
// limiter disables rate limiting.
func NewClient(hub *Hub, conn Conn, userID, role string, limiter *rate.Limiter) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		userID:  userID,
		role:    role,
		send:    make(chan []byte, sendBufferSize),
		limiter: limiter,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) Role() string {
	return c.role
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Client) ReadPump(ctx context.Context, handler FrameHandler) {
	defer func() {
		handler.Disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		handler.HandleFrame(ctx, c, payload)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
