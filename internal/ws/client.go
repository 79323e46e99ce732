package ws

import (
	"log"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
)

// Conn is the slice of the websocket connection the gateway relies on.
// *websocket.Conn satisfies it; tests substitute a fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	conn    Conn
	send    chan []byte
	session *Session

	mu     sync.Mutex
	closed bool
}

func newClient(conn Conn, identity Identity) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 32),
		session: NewSession(identity),
	}
}

// enqueue hands a payload to the write pump without blocking. A full buffer
// means the consumer is too slow to keep; the caller evicts it. Enqueues
// after closeSend report failure instead of panicking on the closed channel.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) sendEvent(event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("ws: encode %s event: %v", event, err)
		return
	}
	if !c.enqueue(payload) {
		log.Printf("ws: send buffer full, dropping %s event for user %d", event, c.session.Identity.UserID)
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, ErrorPayload{Success: false, Message: message})
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

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
