package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"meal_planner/internal/domain"
	"meal_planner/pkg/logger"
)

// Hub owns the room -> live sessions mapping. It is the only writer of the
// membership sets; sessions hold just their room id for addressing.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[string]*Client
	log   logger.Logger
}

func New(log logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[string]*Client),
		log:   log,
	}
}

// Join registers the client under its room. A room absent from the
// registry is created on first join.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.RoomID]
	if !ok {
		clients = make(map[string]*Client)
		h.rooms[client.RoomID] = clients
	}
	clients[client.ID] = client

	h.log.Debug("Client joined room", "client_id", client.ID, "room_id", client.RoomID)
}

// Leave removes the client and prunes the room entry when its session set
// becomes empty. Safe to call more than once for the same client.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, ok := clients[client.ID]; !ok {
		return
	}
	delete(clients, client.ID)
	if len(clients) == 0 {
		delete(h.rooms, client.RoomID)
	}

	h.log.Debug("Client left room", "client_id", client.ID, "room_id", client.RoomID)
}

// Members returns a snapshot of the room's sessions, safe to iterate while
// joins and leaves proceed concurrently.
func (h *Hub) Members(roomID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[roomID]
	members := make([]*Client, 0, len(clients))
	for _, c := range clients {
		members = append(members, c)
	}
	return members
}

func (h *Hub) RoomCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast delivers payload to every session in the room except the one
// identified by excludeID. A recipient whose send buffer is gone or full is
// treated as disconnected: it is dropped from the registry and closed, and
// the remaining recipients still get the message. Returns the number of
// sessions the payload was queued for.
func (h *Hub) Broadcast(roomID uuid.UUID, payload domain.BroadcastPayload, excludeID string) int {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("Failed to marshal broadcast payload", "room_id", roomID, "error", err)
		return 0
	}

	delivered := 0
	for _, client := range h.Members(roomID) {
		if client.ID == excludeID {
			continue
		}
		if client.trySend(data) {
			delivered++
			continue
		}
		h.log.Warn("Dropping unresponsive client", "client_id", client.ID, "room_id", roomID)
		h.Leave(client)
		client.Close()
	}

	return delivered
}
