package gameserver

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Command is a client request received over the websocket.
type Command struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Tier     int    `json:"tier,omitempty"`
}

// Command types accepted from clients.
const (
	CmdStart = "start"
	CmdView  = "view"
)

// Client is one websocket connection.
type Client struct {
	hub     *Hub
	session *Session
	conn    *websocket.Conn
	logger  *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, session *Session, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:     hub,
		session: session,
		conn:    conn,
		send:    make(chan []byte, 256),
		logger:  logger,
	}
}

// readPump handles commands until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.reply(Envelope{Type: MsgError, Data: errorBody{Error: "malformed command"}})
			continue
		}
		c.reply(c.handle(cmd))
	}
}

func (c *Client) handle(cmd Command) Envelope {
	switch cmd.Type {
	case CmdView:
		return Envelope{Type: MsgView, Data: c.session.View()}
	case CmdStart:
		cat, err := action.ParseCategory(cmd.Category)
		if err != nil {
			return Envelope{Type: MsgError, Data: errorBody{Error: err.Error()}}
		}
		pa, err := c.session.TryStart(cat, cmd.Tier)
		if err != nil {
			var rej *scheduler.RejectedError
			if errors.As(err, &rej) {
				return Envelope{Type: MsgRejected, Data: rejectionBody(rej)}
			}
			return Envelope{Type: MsgError, Data: errorBody{Error: err.Error()}}
		}
		return Envelope{Type: MsgStarted, Data: startedBody(pa)}
	default:
		return Envelope{Type: MsgError, Data: errorBody{Error: "unknown command " + cmd.Type}}
	}
}

// reply queues env for this client only; it is dropped if the queue is full.
func (c *Client) reply(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("encoding reply", zap.Error(err))
		return
	}
	c.offer(payload)
}

// offer queues msg without blocking and reports whether it was queued.
func (c *Client) offer(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains send to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
