package ws

import (
	"log"
	"sync"
)

// Registry maps connection ids to live clients and keeps an explicit room
// membership index (roomID -> set of connection ids). The match coordinator
// queries rooms through this index instead of reaching into the transport
// layer.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Add registers a connected client.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Remove unregisters a client and drops it from every room it joined.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	for roomID, members := range r.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// Get returns the live client for a connection id.
func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// UserOf returns the user bound to a connection.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	if !ok {
		return "", false
	}
	return c.UserID, true
}

// Join adds a connection to a room.
func (r *Registry) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	if len(members) > 2 {
		// a match room never holds more than two connections; log the
		// violation instead of crashing
		log.Printf("⚠️ room %s has %d connections", roomID, len(members))
	}
}

// Leave removes a connection from a room.
func (r *Registry) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns the connection ids currently joined to a room.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Opponent returns the other connection sharing a room with connID.
func (r *Registry) Opponent(roomID, connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.rooms[roomID] {
		if id != connID {
			return id, true
		}
	}
	return "", false
}
