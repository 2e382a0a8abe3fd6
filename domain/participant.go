// Package domain contains core concepts of the chat system.
// This file defines Participant identities and the room credential.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

type ParticipantID string

func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// Credential is the opaque bearer value granting access to one room.
type Credential struct {
	RoomID        RoomID
	ParticipantID ParticipantID
	Token         string
}
