package runtime

import (
	"hidden-talk/contract"
	"hidden-talk/domain"
	"sync"
)

type Set map[string]struct{}

// Registry tracks the realtime connections of this process, per room.
// It holds no room state: a room absent from the registry may very well exist in the store.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // map connection -> Sink
	roomMembers map[domain.RoomID]Set         // map room to connections
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomID]Set),
	}
}

// GetSinksForRoom returns the sinks of every connection attached to the room, nil when none.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connectionID := range members {
		if sink, exists := r.sessions[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe attaches a connection to a room and reports whether it is the room's first one.
func (r *Registry) Subscribe(connectionID string, roomID domain.RoomID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connectionID] = sink

	members, ok := r.roomMembers[roomID]
	if !ok {
		members = make(Set)
		r.roomMembers[roomID] = members
	}
	members[connectionID] = struct{}{}
	return !ok
}

// Unsubscribe detaches a connection and reports whether the room is left without any.
// Empty rooms are removed so the registry never grows with dead rooms.
func (r *Registry) Unsubscribe(connectionID string, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, connectionID)

	members, ok := r.roomMembers[roomID]
	if !ok {
		return false
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
		return true
	}
	return false
}

// RoomCount is the number of rooms with at least one connection.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}
