package gameserver

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Envelope frames every websocket message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message types sent to clients.
const (
	MsgView     = "view"
	MsgStarted  = "started"
	MsgRejected = "rejected"
	MsgError    = "error"
)

// Hub fans frames out to connected websocket clients.
//
// Invariant: a client's send channel is closed exactly once, when the client
// leaves, falls behind, or the Hub stops.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub returns a Hub; call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run handles registrations and broadcasts until ctx is cancelled. Clients
// still connected at that point are released.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			c.close()
			delete(h.clients, c)
		}
		h.mu.Unlock()
		close(h.done)
		h.logger.Info("websocket hub stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.Int("clients", n))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.Int("clients", n))
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.offer(msg) {
					// Slow consumer.
					c.close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends env to every client. It never blocks: the frame is dropped
// when the Hub is stopped or its queue is full.
func (h *Hub) Broadcast(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encoding broadcast", zap.String("type", env.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full; dropping frame", zap.String("type", env.Type))
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
