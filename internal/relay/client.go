package relay

import (
	"time"

	"chatcord/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// Large enough for relayed signaling payloads.
	maxMessageSize = 64 * 1024
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id       string
	username string

	// textRoom is the client's current text-channel subscription. Voice
	// membership lives in the hub's roster; the two are independent.
	// Only the hub goroutine touches this field.
	textRoom string
}

func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		id:       uuid.NewString(),
		username: username,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		if !c.forward(message) {
			break
		}
	}
}

// forward hands one inbound frame to the hub. It reports false once the hub
// has shut down so the pump exits instead of blocking on a loop that will
// never read again.
func (c *Client) forward(data []byte) bool {
	select {
	case c.hub.inbound <- inbound{client: c, data: data}:
		return true
	case <-c.hub.shutdown:
		return false
	}
}

// disconnect notifies the hub of a closed connection unless the hub itself
// is already shutting down.
func (c *Client) disconnect() {
	select {
	case c.hub.Unregister <- c:
	case <-c.hub.shutdown:
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
