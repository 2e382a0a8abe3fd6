package runtime

import (
	"context"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	"sync"
)

// subscribed reports whether the relay holds a channel subscription for the room.
func subscribed(relay *Relay, roomID domain.RoomID) bool {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	_, ok := relay.rooms[roomID]
	return ok
}

// recordingSink keeps what the relay handed to one connection.
type recordingSink struct {
	mu        sync.Mutex
	posted    []event.MessagePosted
	destroyed bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (r *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch evt := e.(type) {
	case event.MessagePosted:
		r.posted = append(r.posted, evt)
	case event.RoomDestroyed:
		r.destroyed = true
	}
	return nil
}

func (r *recordingSink) Posted() []event.MessagePosted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.MessagePosted(nil), r.posted...)
}

func (r *recordingSink) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}
