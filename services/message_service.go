package services

import (
	"context"
	"hidden-talk/auth"
	"hidden-talk/contract"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	"hidden-talk/repositories"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageService interface {
	Admit(ctx context.Context, roomID domain.RoomID, credential, sender, text string) (domain.Message, error)
	List(ctx context.Context, roomID domain.RoomID, credential string) ([]domain.Message, error)
}

// MessageService is the ledger of a room: ordered, ownership tagged, bound to the room lifetime.
// The store is the source of truth, the channel only accelerates delivery.
type MessageService struct {
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	publisher contract.Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewMessageService(
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	publisher contract.Publisher,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		rooms:     rooms,
		messages:  messages,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Admit validates, writes, then notifies.
// The write sets the history TTL to the room's current remaining TTL, never more.
func (s *MessageService) Admit(ctx context.Context, roomID domain.RoomID, credential, sender, text string) (domain.Message, error) {
	if err := auth.ValidateMessage(sender, text); err != nil {
		return domain.Message{}, err
	}

	if _, err := s.rooms.TTL(ctx, roomID); err != nil {
		return domain.Message{}, err
	}

	message := domain.Message{
		ID:         uuid.New(),
		RoomID:     roomID,
		Sender:     sender,
		Text:       text,
		Timestamp:  s.now().UTC(),
		OwnerToken: lo.ToPtr(credential),
	}
	if err := s.messages.StoreMessage(ctx, message); err != nil {
		s.log.Error("Message write failed", "room_id", roomID, "error", err)
		return domain.Message{}, err
	}

	if err := s.publisher.Publish(ctx, event.NewMessagePosted(message)); err != nil {
		s.log.Warn("Message notification not delivered", "room_id", roomID, "message_id", message.ID, "error", err)
	}
	return message, nil
}

// List returns the history in insertion order, ownership kept only on the caller's own messages.
func (s *MessageService) List(ctx context.Context, roomID domain.RoomID, credential string) ([]domain.Message, error) {
	if _, err := s.rooms.TTL(ctx, roomID); err != nil {
		return nil, err
	}
	messages, err := s.messages.GetMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.Message {
		return m.RedactFor(credential)
	}), nil
}
