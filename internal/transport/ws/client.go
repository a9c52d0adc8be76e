package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tdlobby/internal/model"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed between frames from the peer, pongs included
	pongWait = 60 * time.Second

	// Time between pings. Must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Largest frame accepted from the peer
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing frames
	sendBufferSize = 256
)

// Client is one live WebSocket connection
type Client struct {
	id          model.ConnectionID
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
}

func newClient(id model.ConnectionID, conn *websocket.Conn) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ID returns the connection id
func (c *Client) ID() model.ConnectionID {
	return c.id
}

// readPump hands every text frame to onFrame until the peer goes away
func (c *Client) readPump(onFrame func([]byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		onFrame(frame)
	}
}

// writePump drains send onto the socket and keeps the connection alive.
// It closes the socket when send is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
