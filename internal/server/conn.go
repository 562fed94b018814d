package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Conn wraps one client socket with buffered read/write pumps. It carries
// no game state; the manager owns the socket→(instance, identity) binding.
type Conn struct {
	conn      *websocket.Conn
	send      chan *Envelope
	logger    *log.Logger
	manager   *Manager
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConn creates a connection wrapper routing frames into manager.
func NewConn(conn *websocket.Conn, logger *log.Logger, manager *Manager) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		conn:    conn,
		send:    make(chan *Envelope, 256),
		logger:  logger.WithPrefix("conn"),
		manager: manager,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins handling the connection.
func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send queues an envelope for delivery to the client.
func (c *Conn) Send(env *Envelope) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// readPump feeds inbound frames to the manager. Malformed frames are logged
// and dropped with the connection left open; the literal keep-alive frame
// is ignored.
func (c *Conn) readPump() {
	defer func() {
		c.manager.HandleClose(c)
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

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		if string(bytes.TrimSpace(data)) == keepAliveFrame {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("parse error", "error", err)
			continue
		}
		c.manager.HandleMessage(c, &env)
	}
}

// writePump drains the send buffer and keeps the socket alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error("failed to write message", "error", err)
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
