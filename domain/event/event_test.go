package event

import (
	"encoding/json"
	"hidden-talk/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessagePosted_DropsOwnerToken(t *testing.T) {
	req := require.New(t)
	msg := domain.Message{
		ID:         uuid.New(),
		RoomID:     domain.NewRoomID(),
		Sender:     "alice",
		Text:       "hi",
		Timestamp:  time.Now(),
		OwnerToken: lo.ToPtr("secret-credential"),
	}

	payload, err := Encode(NewMessagePosted(msg))
	req.NoError(err)
	req.NotContains(string(payload), "secret-credential")

	var envelope map[string]any
	req.NoError(json.Unmarshal(payload, &envelope))
	req.Equal("chat.message", envelope["event"])
}

func TestDecode_RoomDestroyedKeepsRoom(t *testing.T) {
	req := require.New(t)
	roomID := domain.NewRoomID()

	payload, err := Encode(NewRoomDestroyed(roomID))
	req.NoError(err)

	decoded, err := Decode(payload)
	req.NoError(err)
	destroyed, ok := decoded.(RoomDestroyed)
	req.True(ok)
	req.True(destroyed.IsDestroyed)
	req.Equal(roomID, destroyed.RoomID())
}

func TestDecode_UnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"chat.typing","roomId":"r","data":{}}`))
	require.Error(t, err)
}
