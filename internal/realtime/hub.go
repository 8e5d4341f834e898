package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub tracks connected clients and the rooms they joined, and fans messages out to them.
// Sends never block: a client whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Register makes c addressable by id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Unregister removes c from every room and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.leaveLocked(c)
	delete(h.clients, c.ID)
	close(c.send)
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// JoinRoom subscribes a registered client to room.
func (h *Hub) JoinRoom(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[clientID] = c
	c.rooms[room] = struct{}{}
}

// LeaveRooms unsubscribes a client from every room it joined.
func (h *Hub) LeaveRooms(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		h.leaveLocked(c)
	}
}

func (h *Hub) leaveLocked(c *Client) {
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		delete(c.rooms, room)
	}
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends to every client in room.
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		h.deliver(c, msg)
	}
}

// BroadcastPrefix sends to every client in any room whose name starts with prefix. A
// client in several matching rooms receives the message once.
func (h *Hub) BroadcastPrefix(prefix, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for room, members := range h.rooms {
		if !strings.HasPrefix(room, prefix) {
			continue
		}
		for id, c := range members {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			h.deliver(c, msg)
		}
	}
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(clientID, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[clientID]; ok {
		h.deliver(c, msg)
	}
}

func (h *Hub) encode(event string, payload interface{}) (WSMessage, bool) {
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	default:
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			h.logger.Error("encode message", zap.String("event", event), zap.Error(err))
			return WSMessage{}, false
		}
	}
	return WSMessage{Event: event, Data: data}, true
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(c *Client, msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client send buffer full, dropping message",
			zap.String("client_id", c.ID),
			zap.String("event", msg.Event),
		)
	}
}
