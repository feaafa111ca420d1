// Package transport maintains the websocket sessions: one reader and one
// writer goroutine per connection, with the gateway routing typed messages
// between clients and their rooms.
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/protocol"
)

var ErrSendQueueFull = errors.New("send queue full")

const writeWait = 10 * time.Second

// Client is one websocket session. It implements room.Channel; the room is
// the single writer into send, the writePump the single reader.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	logger  *zap.Logger

	send chan protocol.ServerMessage

	mu            sync.Mutex
	playerID      string
	playerName    string
	authenticated bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(g *Gateway, conn *websocket.Conn) *Client {
	return &Client{
		gateway: g,
		conn:    conn,
		logger:  g.logger,
		send:    make(chan protocol.ServerMessage, g.cfg.SendQueueSize),
		closed:  make(chan struct{}),
	}
}

// Send implements room.Channel. It never blocks: a full queue is
// back-pressure and the caller treats this client as disconnected.
func (c *Client) Send(msg protocol.ServerMessage) error {
	select {
	case <-c.closed:
		return ErrSendQueueFull
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close implements room.Channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) identity() (id, name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.playerName, c.authenticated
}

func (c *Client) setIdentity(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
	c.playerName = name
	c.authenticated = true
}

// readPump owns the connection's read side. It exits on any read error and
// hands the disconnect to the gateway.
func (c *Client) readPump() {
	defer func() {
		c.gateway.handleClose(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.gateway.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(protocol.NewError(protocol.CodeInternalError, "malformed message"))
			continue
		}
		c.gateway.handleMessage(c, msg)
	}
}

// writePump owns the connection's write side and keeps liveness with
// application pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.gateway.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			c.gateway.metrics.MessagesOut.Inc()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
