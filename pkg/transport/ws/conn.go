package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/storekit/config-hub/internal/hub"
	"github.com/storekit/config-hub/pkg/core"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Conn adapts one gorilla connection to core.Conn. All writes funnel through
// the send channel into a single write pump; the pump doubles as the
// keep-alive prober and tears the connection down when a write fails.
type Conn struct {
	id           string
	ws           *websocket.Conn
	send         chan []byte
	hub          *hub.Hub
	logger       *slog.Logger
	pingInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, wsc *websocket.Conn, h *hub.Hub, logger *slog.Logger, pingInterval time.Duration) *Conn {
	return &Conn{
		id:           id,
		ws:           wsc,
		send:         make(chan []byte, sendBuffer),
		hub:          h,
		logger:       logger,
		pingInterval: pingInterval,
		done:         make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Send enqueues a frame for the write pump. It fails once the connection is
// closed or the client stops draining its buffer; the hub treats either as a
// dead connection.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) start() {
	c.hub.OnConnect(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.OnDisconnect(c)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws read error", "connection_id", c.id, "error", err)
			}
			return
		}
		c.hub.HandleMessage(context.Background(), c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			// Liveness probe. A failed write means the connection is no
			// longer open; the pump exits and the probe dies with it.
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, core.PingEnvelope()); err != nil {
				return
			}
		}
	}
}
