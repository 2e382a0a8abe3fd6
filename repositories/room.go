package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hidden-talk/contract"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"time"

	"github.com/samber/lo"
)

type IRoomRepository interface {
	Create(ctx context.Context, room domain.Room, lifetime time.Duration) error
	Get(ctx context.Context, roomID domain.RoomID) (DiskRoom, error)
	TTL(ctx context.Context, roomID domain.RoomID) (time.Duration, error)
	Participants(ctx context.Context, roomID domain.RoomID) ([]domain.ParticipantID, error)
	AddParticipant(ctx context.Context, roomID domain.RoomID, participant domain.ParticipantID) error
	Delete(ctx context.Context, roomID domain.RoomID) error
}

type RoomRepository struct {
	store contract.KeyedStore
	keys  Keys
}

func NewRoomRepository(store contract.KeyedStore, keys Keys) RoomRepository {
	return RoomRepository{store: store, keys: keys}
}

// DiskRoom is the metadata record stored under the meta key.
type DiskRoom struct {
	CreatedAt int64 `json:"createdAt"`
}

// Create writes the metadata key and its expiration in a single store call,
// a room is never visible without its lifetime.
func (r RoomRepository) Create(ctx context.Context, room domain.Room, lifetime time.Duration) error {
	data, err := json.Marshal(DiskRoom{CreatedAt: room.CreatedAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.store.Set(ctx, r.keys.Meta(room.ID), data, lifetime)
}

func (r RoomRepository) Get(ctx context.Context, roomID domain.RoomID) (DiskRoom, error) {
	data, err := r.store.Get(ctx, r.keys.Meta(roomID))
	if err != nil {
		return DiskRoom{}, notFoundAsRoom(err)
	}
	var room DiskRoom
	if err = json.Unmarshal(data, &room); err != nil {
		return DiskRoom{}, fmt.Errorf("%w: corrupted room %s: %v", apperrors.ErrStoreUnavailable, roomID, err)
	}
	return room, nil
}

// TTL returns the store-owned remaining lifetime of the room, ErrRoomNotFound when it is gone.
func (r RoomRepository) TTL(ctx context.Context, roomID domain.RoomID) (time.Duration, error) {
	ttl, err := r.store.TTL(ctx, r.keys.Meta(roomID))
	if err != nil {
		return 0, notFoundAsRoom(err)
	}
	return ttl, nil
}

func (r RoomRepository) Participants(ctx context.Context, roomID domain.RoomID) ([]domain.ParticipantID, error) {
	values, err := r.store.ReadList(ctx, r.keys.Participants(roomID))
	if err != nil {
		return nil, err
	}
	return lo.Map(values, func(v []byte, _ int) domain.ParticipantID {
		return domain.ParticipantID(v)
	}), nil
}

// AddParticipant appends to the participant list, which expires with the room metadata.
func (r RoomRepository) AddParticipant(ctx context.Context, roomID domain.RoomID, participant domain.ParticipantID) error {
	err := r.store.Append(ctx, r.keys.Participants(roomID), []byte(participant), r.keys.Meta(roomID))
	return notFoundAsRoom(err)
}

// Delete removes the metadata and the participant list.
// Both deletions are attempted, errors are joined.
func (r RoomRepository) Delete(ctx context.Context, roomID domain.RoomID) error {
	return errors.Join(
		r.store.Delete(ctx, r.keys.Meta(roomID)),
		r.store.Delete(ctx, r.keys.Participants(roomID)),
	)
}

func notFoundAsRoom(err error) error {
	if errors.Is(err, apperrors.ErrKeyNotFound) {
		return apperrors.ErrRoomNotFound
	}
	return err
}
