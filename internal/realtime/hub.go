// Package realtime pushes location updates to connected clients over
// websockets. Clients authenticate with the same session-backed token as the
// HTTP API and join a room scoped to their own user id.
package realtime

import (
	"encoding/json"
	"sync"

	"carelink/pkg/domain"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

// Hub tracks connected clients by room. One room per user id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Client]struct{}
	logger logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: log,
	}
}

// join adds a client to a room. Clients may only join their own room; the
// handler enforces that before calling.
func (h *Hub) join(room uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// remove drops a client from every room it joined.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, clients := range h.rooms {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// locationEvent is the wire shape of a pushed point.
type locationEvent struct {
	Event string              `json:"event"`
	Data  *domain.Geolocation `json:"data"`
}

// PublishLocation sends a new point to every client in the given user's room.
// Slow clients are skipped rather than blocking the publisher.
func (h *Hub) PublishLocation(userID uuid.UUID, geo *domain.Geolocation) {
	payload, err := json.Marshal(locationEvent{Event: "location", Data: geo})
	if err != nil {
		h.logger.Error("Failed to encode location event", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[userID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping location event for slow client", map[string]interface{}{
				"user_id": userID.String(),
			})
		}
	}
}
