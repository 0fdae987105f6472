package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one authenticated channel. The resolved identity is
// attached once at channel-open and never re-derived per message.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(userID uuid.UUID, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// trySend queues raw bytes without blocking. A full buffer means the
// channel is too slow; the event is dropped and reported as a
// delivery failure by the caller.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendEvent marshals and queues a single event for this channel.
func (c *Client) SendEvent(event Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[realtime] failed to marshal event %s: %v", event.Type, err)
		return false
	}
	return c.trySend(data)
}

// Close releases the channel. Idempotent; safe to call from any
// goroutine (e.g. when a second session displaces this one).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done is closed once the channel has been released.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads inbound events and hands them to the hub until the
// connection drops. Runs on the connection's goroutine; the hub's
// disconnect path is triggered exactly once on exit.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[realtime] unexpected close for user %s: %v", c.UserID, err)
			}
			return
		}
		hub.HandleMessage(c, message)
	}
}

// WritePump drains the send buffer to the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
