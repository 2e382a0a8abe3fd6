// Package domain contains core concepts of the chat system.
// This file defines Room and its lifetime rules.
// A Room lives in the store only; its expiry is owned by the store, never by a timer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLifetime is the lifetime window of a room when none is configured.
const DefaultLifetime = 30 * time.Minute

type RoomID string

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

func (r RoomID) String() string {
	return string(r)
}

// Room is a bounded-lifetime namespace for a single conversation.
// ExpiresAt is derived from the store's remaining TTL at read time.
type Room struct {
	ID                    RoomID
	CreatedAt             time.Time
	ConnectedParticipants []ParticipantID
	ExpiresAt             time.Time
}

// Remaining returns the lifetime left at the given instant, never negative.
func (r Room) Remaining(now time.Time) time.Duration {
	if left := r.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}
