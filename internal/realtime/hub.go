package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"canteen/internal/monitoring"
)

// Hub tracks room membership for all connected clients of this process.
// A room is keyed by user id; a client joins its own room after connecting
// and is removed from every room when the connection drops, whether or not
// it sent an explicit leave.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	metrics *monitoring.Metrics
}

func NewHub(metrics *monitoring.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		metrics: metrics,
	}
}

// Join adds the client to a room.
func (h *Hub) Join(c *Client, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

// Leave removes the client from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// drop removes a disconnected client from every room it joined and closes
// its send channel. Closing under the lock guarantees no concurrent Publish
// is mid-send on the channel.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
}

// RoomSize reports how many clients are currently in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish sends an event to every client in the room. Slow clients whose
// send buffer is full have the message dropped rather than blocking the
// caller; they resync via REST on their next fetch.
func (h *Hub) Publish(room, event string, payload interface{}) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", event, err)
		return
	}

	// Sends are non-blocking, so holding the read lock here is cheap and
	// excludes drop() from closing a send channel mid-publish.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			if h.metrics != nil {
				h.metrics.DroppedMessages.Inc()
			}
			log.Printf("realtime: send buffer full, dropping %s for room %s", event, room)
		}
	}
}
