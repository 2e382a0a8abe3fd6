// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once admitted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinTextLength   = 1
	MaxTextLength   = 1000
	MinSenderLength = 1
	MaxSenderLength = 30
)

// Message represents an immutable chat message.
// OwnerToken holds the admitting credential and is only ever shown back to that credential.
type Message struct {
	ID         uuid.UUID
	RoomID     RoomID
	Sender     string
	Text       string
	Timestamp  time.Time
	OwnerToken *string
}

// RedactFor returns a copy of the message where the ownership field is kept
// only if it belongs to the given credential.
func (m Message) RedactFor(credential string) Message {
	if !m.IsOwnedBy(credential) {
		m.OwnerToken = nil
	}
	return m
}

// IsOwnedBy reports whether the message was admitted with the given credential.
func (m Message) IsOwnedBy(credential string) bool {
	return m.OwnerToken != nil && *m.OwnerToken == credential
}
