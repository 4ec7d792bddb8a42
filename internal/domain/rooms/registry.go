// Package rooms tracks the set of live connections joined to each
// session and fans events out to them. It is a volatile, derived view:
// the durable session record remains the system of record. The registry
// is mutated only by the owning session coordinator.
package rooms

import (
	"sync"

	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/infrastructure/metrics"
)

// Sender delivers one encoded frame to a connection without blocking.
// An error means the frame was dropped for that connection only.
type Sender interface {
	TrySend(frame []byte) error
}

type member struct {
	principal principal.Principal
	sender    Sender
}

// Registry maps session ids to their live connections.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]member // session id -> connection id -> member
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]member)}
}

// Add registers a live connection in a room, creating the room on first
// join.
func (r *Registry) Add(sessionID, connID string, p principal.Principal, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		room = make(map[string]member)
		r.rooms[sessionID] = room
		metrics.ActiveRooms.Inc()
	}
	room[connID] = member{principal: p, sender: s}
}

// Remove drops one connection from a room and destroys the room when it
// empties. It reports whether the room is now gone.
func (r *Registry) Remove(sessionID, connID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		return true
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, sessionID)
		metrics.ActiveRooms.Dec()
		return true
	}
	return false
}

// DropRoom removes every connection of a session at once (session end).
func (r *Registry) DropRoom(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[sessionID]; ok {
		delete(r.rooms, sessionID)
		metrics.ActiveRooms.Dec()
	}
}

// Size returns the number of live connections in a room.
func (r *Registry) Size(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[sessionID])
}

// LiveConnections returns the set of live connection ids in a room.
func (r *Registry) LiveConnections(sessionID string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := make(map[string]bool, len(r.rooms[sessionID]))
	for connID := range r.rooms[sessionID] {
		live[connID] = true
	}
	return live
}

// Broadcast delivers a frame to every connection in the room except the
// excluded ids, best effort. A slow or dead connection never stalls
// delivery to the others; its frame is dropped and counted.
func (r *Registry) Broadcast(sessionID string, frame []byte, exclude ...string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	for connID, m := range r.rooms[sessionID] {
		if skip[connID] {
			continue
		}
		if err := m.sender.TrySend(frame); err != nil {
			metrics.BroadcastDrops.Inc()
		}
	}
}
