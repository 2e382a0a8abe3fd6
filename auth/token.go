package auth

import (
	"fmt"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "hidden-talk"

// RoomClaims is the payload of a room credential.
// A credential grants access to exactly one room and identifies one participant.
type RoomClaims struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	jwt.RegisteredClaims
}

type CredentialIssuer struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewCredentialIssuer signs credentials valid for the room lifetime window,
// a credential never outlives the room it was issued for.
func NewCredentialIssuer(key []byte, lifetime time.Duration) CredentialIssuer {
	return CredentialIssuer{key: key, lifetime: lifetime, now: time.Now}
}

// Issue creates a signed HS256 credential for a participant of a room.
func (c CredentialIssuer) Issue(roomID domain.RoomID, participantID domain.ParticipantID) (domain.Credential, error) {
	now := c.now()
	claims := &RoomClaims{
		RoomID:        roomID.String(),
		ParticipantID: string(participantID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("credential signing failed: %w", err)
	}
	return domain.Credential{RoomID: roomID, ParticipantID: participantID, Token: token}, nil
}

// Validate checks signature, algorithm and expiration, then that the credential belongs to the room.
func (c CredentialIssuer) Validate(token string, roomID domain.RoomID) (domain.Credential, error) {
	claims := &RoomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Credential{}, apperrors.ErrInvalidCredential
	}
	if claims.RoomID != roomID.String() || claims.ParticipantID == "" {
		return domain.Credential{}, apperrors.ErrInvalidCredential
	}
	return domain.Credential{
		RoomID:        roomID,
		ParticipantID: domain.ParticipantID(claims.ParticipantID),
		Token:         token,
	}, nil
}
