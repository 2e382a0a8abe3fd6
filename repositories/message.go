package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"hidden-talk/contract"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) error
	GetMessages(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	Delete(ctx context.Context, roomID domain.RoomID) error
}

type MessageRepository struct {
	store contract.KeyedStore
	keys  Keys
	log   *slog.Logger
}

func NewMessageRepository(store contract.KeyedStore, keys Keys, log *slog.Logger) MessageRepository {
	return MessageRepository{store: store, keys: keys, log: log}
}

// DiskMessage is the stored form of a message, the token is the admitting credential.
type DiskMessage struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
	Token     *string `json:"token,omitempty"`
}

// StoreMessage appends the message at the tail of the room history.
// Append order is serialized by the store, no sequence number is assigned.
// The history takes the current expiration of the room metadata in the same write,
// so it never outlives the room. ErrRoomNotFound when the room is gone, nothing is written then.
func (m MessageRepository) StoreMessage(ctx context.Context, message domain.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	err = m.store.Append(ctx, m.keys.Messages(message.RoomID), data, m.keys.Meta(message.RoomID))
	return notFoundAsRoom(err)
}

// GetMessages returns the whole history in insertion order.
// Undecodable records are skipped and logged.
func (m MessageRepository) GetMessages(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	values, err := m.store.ReadList(ctx, m.keys.Messages(roomID))
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(values))
	for _, v := range values {
		var dm DiskMessage
		if err = json.Unmarshal(v, &dm); err != nil {
			m.log.Error("Skipping undecodable message", "room_id", roomID, "error", err)
			continue
		}
		message, err := toMessage(roomID, dm)
		if err != nil {
			m.log.Error("Skipping message with invalid id", "room_id", roomID, "error", err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (m MessageRepository) Delete(ctx context.Context, roomID domain.RoomID) error {
	return m.store.Delete(ctx, m.keys.Messages(roomID))
}

func fromMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:        message.ID.String(),
		Sender:    message.Sender,
		Text:      message.Text,
		Timestamp: message.Timestamp.UnixMilli(),
		Token:     message.OwnerToken,
	}
}

func toMessage(roomID domain.RoomID, dm DiskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return domain.Message{
		ID:         parsedID,
		RoomID:     roomID,
		Sender:     dm.Sender,
		Text:       dm.Text,
		Timestamp:  time.UnixMilli(dm.Timestamp).UTC(),
		OwnerToken: lo.EmptyableToPtr(lo.FromPtr(dm.Token)),
	}, nil
}
