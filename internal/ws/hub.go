package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"club-chat-service/internal/models"
	"club-chat-service/internal/observability"
)

// Hub is the process-wide registry of rooms and their connected
// subscribers. Access to the registry is mutex-guarded; delivery to each
// subscriber goes through a bounded per-connection queue so one slow
// client can never stall a room's fan-out.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[int64]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[int64]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.clients[c] = struct{}{}
}

// Unregister removes a connection from the hub and every room it
// subscribed to.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for roomID := range c.rooms {
		h.removeFromRoom(roomID, c)
	}
}

// Subscribe attaches the connection to a room's channel. Subscription is
// not membership-gated here; room ids only reach clients through the
// authorized HTTP surface.
func (h *Hub) Subscribe(c *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	observability.IncWSEvent("subscribe")
}

// Unsubscribe detaches the connection from a room's channel.
func (h *Hub) Unsubscribe(c *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(roomID, c)
	delete(c.rooms, roomID)
	observability.IncWSEvent("unsubscribe")
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(roomID int64, c *Client) {
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast pushes an event to every subscriber of the room. At-most-once
// and best-effort: a subscriber whose outbound queue is full is dropped
// rather than awaited, and nothing here propagates to the caller.
func (h *Hub) Broadcast(roomID int64, event models.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("event marshal failed")
		return
	}

	h.mu.RLock()
	subscribers := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		if !c.trySend(payload) {
			h.log.Warn().
				Str("conn_id", c.info.ConnID).
				Int64("room_id", roomID).
				Msg("subscriber queue full, dropping connection")
			observability.IncWSDropped()
			c.Close()
		}
	}
	observability.IncWSEvent("broadcast")
}

// Shutdown drains the hub: no further registrations or subscriptions are
// accepted and every connection is closed.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// Client is one websocket connection with its bounded outbound queue.
// The send channel is never closed; the write pump exits on done, so a
// late Broadcast can race with Close without panicking.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	info ConnInfo

	// rooms is guarded by hub.mu.
	rooms map[int64]struct{}

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, info ConnInfo, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		info:  info,
		rooms: make(map[int64]struct{}),
	}
}

// Info returns the connection's identity metadata.
func (c *Client) Info() ConnInfo {
	return c.info
}

// trySend enqueues without blocking. False means the queue is full.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		// Already closing; pretend delivery so the caller does not
		// double-drop.
		return true
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears the connection down exactly once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
