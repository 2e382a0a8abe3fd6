package services

import (
	"context"
	"errors"
	"fmt"
	"hidden-talk/auth"
	"hidden-talk/contract"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"hidden-talk/repositories"
	"log/slog"
	"time"
)

type IRoomService interface {
	Create(ctx context.Context) (domain.RoomID, error)
	Join(ctx context.Context, roomID domain.RoomID, existing string) (domain.Credential, error)
	Get(ctx context.Context, roomID domain.RoomID) (domain.Room, error)
	RemainingLifetime(ctx context.Context, roomID domain.RoomID) (time.Duration, error)
	Destroy(ctx context.Context, roomID domain.RoomID) error
}

// RoomService owns the room lifecycle. Expiration belongs to the store:
// nothing here schedules, tracks or sweeps rooms.
type RoomService struct {
	rooms           repositories.IRoomRepository
	messages        repositories.IMessageRepository
	publisher       contract.Publisher
	issuer          auth.CredentialIssuer
	lifetime        time.Duration
	maxParticipants int
	log             *slog.Logger
	now             func() time.Time
}

func NewRoomService(
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	publisher contract.Publisher,
	issuer auth.CredentialIssuer,
	lifetime time.Duration,
	maxParticipants int,
	log *slog.Logger,
) *RoomService {
	if lifetime <= 0 {
		lifetime = domain.DefaultLifetime
	}
	return &RoomService{
		rooms:           rooms,
		messages:        messages,
		publisher:       publisher,
		issuer:          issuer,
		lifetime:        lifetime,
		maxParticipants: maxParticipants,
		log:             log,
		now:             time.Now,
	}
}

// Create stores the metadata key with its lifetime in a single write.
func (s *RoomService) Create(ctx context.Context) (domain.RoomID, error) {
	room := domain.Room{ID: domain.NewRoomID(), CreatedAt: s.now().UTC()}
	if err := s.rooms.Create(ctx, room, s.lifetime); err != nil {
		s.log.Error("Room creation failed", "room_id", room.ID, "error", err)
		return "", err
	}
	s.log.Debug("Room created", "room_id", room.ID, "lifetime", s.lifetime)
	return room.ID, nil
}

// Join hands out the room credential.
// A caller already holding a valid credential for the room gets it back untouched,
// otherwise a new participant is registered, within the capacity limit.
// The capacity check and the registration are not atomic, racing joiners may overshoot.
func (s *RoomService) Join(ctx context.Context, roomID domain.RoomID, existing string) (domain.Credential, error) {
	if _, err := s.rooms.TTL(ctx, roomID); err != nil {
		return domain.Credential{}, err
	}
	if existing != "" {
		if credential, err := s.issuer.Validate(existing, roomID); err == nil {
			return credential, nil
		}
	}
	if s.maxParticipants > 0 {
		participants, err := s.rooms.Participants(ctx, roomID)
		if err != nil {
			return domain.Credential{}, err
		}
		if len(participants) >= s.maxParticipants {
			return domain.Credential{}, apperrors.ErrRoomFull
		}
	}

	participantID := domain.NewParticipantID()
	if err := s.rooms.AddParticipant(ctx, roomID, participantID); err != nil {
		s.log.Error("Participant registration failed", "room_id", roomID, "error", err)
		return domain.Credential{}, err
	}
	credential, err := s.issuer.Issue(roomID, participantID)
	if err != nil {
		return domain.Credential{}, err
	}
	s.log.Debug("Participant joined", "room_id", roomID, "participant_id", participantID)
	return credential, nil
}

func (s *RoomService) Get(ctx context.Context, roomID domain.RoomID) (domain.Room, error) {
	readAt := s.now()
	ttl, err := s.rooms.TTL(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	meta, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	participants, err := s.rooms.Participants(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	room := domain.Room{
		ID:                    roomID,
		CreatedAt:             time.UnixMilli(meta.CreatedAt).UTC(),
		ConnectedParticipants: participants,
	}
	if ttl != contract.NoExpiry {
		room.ExpiresAt = readAt.Add(ttl)
	}
	return room, nil
}

// RemainingLifetime is 0 for a room that is gone, absence is not an error.
func (s *RoomService) RemainingLifetime(ctx context.Context, roomID domain.RoomID) (time.Duration, error) {
	ttl, err := s.rooms.TTL(ctx, roomID)
	switch {
	case errors.Is(err, apperrors.ErrRoomNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}

// Destroy notifies the room channel then deletes every room key.
// All three effects are attempted whatever fails, store failures are joined.
func (s *RoomService) Destroy(ctx context.Context, roomID domain.RoomID) error {
	if _, err := s.rooms.TTL(ctx, roomID); err != nil {
		if errors.Is(err, apperrors.ErrRoomNotFound) {
			return err
		}
		s.log.Warn("Room lookup failed before destroy, deleting anyway", "room_id", roomID, "error", err)
	}

	if err := s.publisher.Publish(ctx, event.NewRoomDestroyed(roomID)); err != nil {
		s.log.Warn("Destroy notification not delivered", "room_id", roomID, "error", err)
	}
	err := errors.Join(
		s.rooms.Delete(ctx, roomID),
		s.messages.Delete(ctx, roomID),
	)
	if err != nil {
		s.log.Error("Room destruction incomplete", "room_id", roomID, "error", err)
		return fmt.Errorf("destroy %s: %w", roomID, err)
	}
	s.log.Debug("Room destroyed", "room_id", roomID)
	return nil
}
