// Package transport wraps a gorilla/websocket connection into a
// buffered-send, ping/pong-disciplined frame pump, per spec.md §4.4 and
// §5's suspension-point rules (sends must never block the owning room).
// Grounded on lox-pokerforbots/internal/server/connection.go's readPump/
// writePump shape, adapted to this spec's JSON (event,payload) frame.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// ErrConnectionClosed names the closed-connection condition. Send does not
// return it: Send has no return value and drops frames sent after close.
var ErrConnectionClosed = errors.New("transport: connection closed")

// Frame is the wire envelope for every message in either direction:
// (event, payload), per spec.md §6.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Handler receives decoded frames from the peer. Implemented by the hub.
type Handler interface {
	HandleFrame(connID string, frame Frame)
	HandleClose(connID string)
}

// Connection wraps one live websocket and pumps frames in both directions
// without ever blocking the room loop that owns it.
type Connection struct {
	id      string
	conn    *websocket.Conn
	send    chan Frame
	logger  *log.Logger
	handler Handler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wraps conn, ready to Start().
func New(id string, conn *websocket.Conn, logger *log.Logger, handler Handler) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:      id,
		conn:    conn,
		send:    make(chan Frame, sendBuffer),
		logger:  logger.WithPrefix("conn:" + id),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the connection's id.
func (c *Connection) ID() string { return c.id }

// Start launches the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send enqueues a frame for delivery. Non-blocking: a slow or dead peer
// never stalls the caller (the owning room), per spec.md §5. A full buffer
// closes the connection rather than backing up the room loop.
func (c *Connection) Send(event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- Frame{Event: event, Payload: payload}:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.handler.HandleClose(c.id)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}

		c.handler.HandleFrame(c.id, frame)
	}
}

func (c *Connection) writePump() {
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
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
