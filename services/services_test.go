package services

import (
	"context"
	"fmt"
	"hidden-talk/auth"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"hidden-talk/infrastructure/storage"
	"hidden-talk/mocks"
	"hidden-talk/repositories"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const lifetime = 30 * time.Minute

type fixture struct {
	store    *storage.BadgerStore
	keys     repositories.Keys
	issuer   auth.CredentialIssuer
	rooms    *RoomService
	messages *MessageService
}

func newFixture(t *testing.T, publisher *mocks.MockPublisher, maxParticipants int) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store := storage.NewBadgerStore(db, log)
	t.Cleanup(func() { _ = store.Close() })

	key, err := auth.DeriveSigningKey("a-secret-long-enough-for-tests")
	require.NoError(t, err)
	issuer := auth.NewCredentialIssuer(key, lifetime)
	keys := repositories.NewKeys("")
	roomRepository := repositories.NewRoomRepository(store, keys)
	messageRepository := repositories.NewMessageRepository(store, keys, log)
	return fixture{
		store:    store,
		keys:     keys,
		issuer:   issuer,
		rooms:    NewRoomService(roomRepository, messageRepository, publisher, issuer, lifetime, maxParticipants, log),
		messages: NewMessageService(roomRepository, messageRepository, publisher, log),
	}
}

func TestRoomAndMessageFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	t.Run("should admit and redact ownership per credential", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockPublisher(ctrl)
		f := newFixture(t, publisher, 2)

		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)
		ttl, err := f.rooms.RemainingLifetime(ctx, roomID)
		req.NoError(err)
		req.LessOrEqual(ttl, lifetime)
		req.Greater(ttl, lifetime-time.Minute)

		alice, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)
		bob, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)
		req.NotEqual(alice.Token, bob.Token)

		publisher.EXPECT().
			Publish(gomock.Any(), gomock.AssignableToTypeOf(event.MessagePosted{})).
			DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
				posted := e.(event.MessagePosted)
				req.Equal("hi", posted.Text)
				req.Equal(roomID, posted.RoomID())
				return nil
			}).
			Times(1)

		message, err := f.messages.Admit(ctx, roomID, alice.Token, "alice", "hi")
		req.NoError(err)
		req.NotEmpty(message.ID)
		req.Equal("hi", message.Text)
		req.Equal("alice", message.Sender)

		own, err := f.messages.List(ctx, roomID, alice.Token)
		req.NoError(err)
		req.Len(own, 1)
		req.NotNil(own[0].OwnerToken)
		req.Equal(alice.Token, *own[0].OwnerToken)

		other, err := f.messages.List(ctx, roomID, bob.Token)
		req.NoError(err)
		req.Len(other, 1)
		req.Equal(message.ID, other[0].ID)
		req.Nil(other[0].OwnerToken)
	})

	t.Run("should reject invalid input before touching the store", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockKeyedStore(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		keys := repositories.NewKeys("")
		service := NewMessageService(
			repositories.NewRoomRepository(store, keys),
			repositories.NewMessageRepository(store, keys, slog.Default()),
			publisher, slog.Default())

		_, err := service.Admit(ctx, domain.NewRoomID(), "token", "a", "")
		req.ErrorIs(err, apperrors.ErrValidation)
		_, err = service.Admit(ctx, domain.NewRoomID(), "token", strings.Repeat("a", 31), "hi")
		req.ErrorIs(err, apperrors.ErrValidation)
		_, err = service.Admit(ctx, domain.NewRoomID(), "token", "a", strings.Repeat("b", 1001))
		req.ErrorIs(err, apperrors.ErrValidation)
	})

	t.Run("should keep the history empty after a rejected message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, mocks.NewMockPublisher(ctrl), 2)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)
		credential, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)

		_, err = f.messages.Admit(ctx, roomID, credential.Token, "a", "")
		req.ErrorIs(err, apperrors.ErrValidation)

		messages, err := f.messages.List(ctx, roomID, credential.Token)
		req.NoError(err)
		req.Empty(messages)
	})

	t.Run("should reject admission after destroy", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockPublisher(ctrl)
		f := newFixture(t, publisher, 2)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)
		credential, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)

		publisher.EXPECT().Publish(gomock.Any(), event.NewRoomDestroyed(roomID)).Return(nil).Times(1)
		req.NoError(f.rooms.Destroy(ctx, roomID))

		_, err = f.messages.Admit(ctx, roomID, credential.Token, "a", "hi")
		req.ErrorIs(err, apperrors.ErrRoomNotFound)
		_, err = f.messages.List(ctx, roomID, credential.Token)
		req.ErrorIs(err, apperrors.ErrRoomNotFound)

		ttl, err := f.rooms.RemainingLifetime(ctx, roomID)
		req.NoError(err)
		req.Zero(ttl)
	})

	t.Run("should never let the history outlive the room", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockPublisher(ctrl)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		f := newFixture(t, publisher, 0)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)
		credential, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)

		for i := 0; i < 5; i++ {
			_, err = f.messages.Admit(ctx, roomID, credential.Token, "a", fmt.Sprintf("m%d", i))
			req.NoError(err)

			roomTTL, err := f.rooms.RemainingLifetime(ctx, roomID)
			req.NoError(err)
			req.LessOrEqual(roomTTL, lifetime)
			historyTTL, err := f.store.TTL(ctx, f.keys.Messages(roomID))
			req.NoError(err)
			req.LessOrEqual(historyTTL, roomTTL)
			participantsTTL, err := f.store.TTL(ctx, f.keys.Participants(roomID))
			req.NoError(err)
			req.LessOrEqual(participantsTTL, roomTTL)
		}

		messages, err := f.messages.List(ctx, roomID, credential.Token)
		req.NoError(err)
		req.Len(messages, 5)
		for i, m := range messages {
			req.Equal(fmt.Sprintf("m%d", i), m.Text)
		}
	})

	t.Run("should swallow a publish failure", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockPublisher(ctrl)
		f := newFixture(t, publisher, 2)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)

		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(apperrors.ErrChannelUnavailable).Times(1)
		_, err = f.messages.Admit(ctx, roomID, "token", "a", "hi")
		req.NoError(err)

		messages, err := f.messages.List(ctx, roomID, "token")
		req.NoError(err)
		req.Len(messages, 1)
	})

	t.Run("should assign the timestamp on the server", func(t *testing.T) {
		req := require.New(t)
		publisher := mocks.NewMockPublisher(ctrl)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		f := newFixture(t, publisher, 2)
		fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		f.messages.now = func() time.Time { return fixed }
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)

		message, err := f.messages.Admit(ctx, roomID, "token", "a", "hi")
		req.NoError(err)
		req.Equal(fixed, message.Timestamp)
	})
}

func TestMessageService_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	req := require.New(t)

	store := mocks.NewMockKeyedStore(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	keys := repositories.NewKeys("")
	roomID := domain.NewRoomID()
	service := NewMessageService(
		repositories.NewRoomRepository(store, keys),
		repositories.NewMessageRepository(store, keys, slog.Default()),
		publisher, slog.Default())

	store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(10*time.Minute, nil)
	store.EXPECT().Append(gomock.Any(), keys.Messages(roomID), gomock.Any(), keys.Meta(roomID)).Return(apperrors.ErrStoreUnavailable)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := service.Admit(ctx, roomID, "token", "a", "hi")
	req.ErrorIs(err, apperrors.ErrStoreUnavailable)
}

func TestMessageService_BindsHistoryToRoomInTheWrite(t *testing.T) {
	ctx := context.Background()
	keys := repositories.NewKeys("")

	newService := func(t *testing.T) (*MessageService, *mocks.MockKeyedStore, *mocks.MockPublisher) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockKeyedStore(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		return NewMessageService(
			repositories.NewRoomRepository(store, keys),
			repositories.NewMessageRepository(store, keys, slog.Default()),
			publisher, slog.Default()), store, publisher
	}

	t.Run("should append against the room metadata and never touch the expiration itself", func(t *testing.T) {
		req := require.New(t)
		service, store, publisher := newService(t)
		roomID := domain.NewRoomID()

		gomock.InOrder(
			store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(10*time.Minute, nil),
			store.EXPECT().Append(gomock.Any(), keys.Messages(roomID), gomock.Any(), keys.Meta(roomID)).Return(nil),
			publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
		)

		_, err := service.Admit(ctx, roomID, "token", "a", "hi")
		req.NoError(err)
	})

	t.Run("should report a room destroyed between the lookup and the write", func(t *testing.T) {
		req := require.New(t)
		service, store, publisher := newService(t)
		roomID := domain.NewRoomID()

		store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(10*time.Minute, nil)
		store.EXPECT().Append(gomock.Any(), keys.Messages(roomID), gomock.Any(), keys.Meta(roomID)).Return(apperrors.ErrKeyNotFound)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

		_, err := service.Admit(ctx, roomID, "token", "a", "hi")
		req.ErrorIs(err, apperrors.ErrRoomNotFound)
	})
}

func TestRoomService_Join(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	t.Run("should reject a participant past capacity", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, mocks.NewMockPublisher(ctrl), 2)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)

		_, err = f.rooms.Join(ctx, roomID, "")
		req.NoError(err)
		_, err = f.rooms.Join(ctx, roomID, "")
		req.NoError(err)
		_, err = f.rooms.Join(ctx, roomID, "")
		req.ErrorIs(err, apperrors.ErrRoomFull)

		room, err := f.rooms.Get(ctx, roomID)
		req.NoError(err)
		req.Len(room.ConnectedParticipants, 2)
	})

	t.Run("should give back an existing credential", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, mocks.NewMockPublisher(ctrl), 1)
		roomID, err := f.rooms.Create(ctx)
		req.NoError(err)
		first, err := f.rooms.Join(ctx, roomID, "")
		req.NoError(err)

		again, err := f.rooms.Join(ctx, roomID, first.Token)
		req.NoError(err)
		req.Equal(first, again)
	})

	t.Run("should not reuse a credential of another room", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, mocks.NewMockPublisher(ctrl), 0)
		roomA, err := f.rooms.Create(ctx)
		req.NoError(err)
		roomB, err := f.rooms.Create(ctx)
		req.NoError(err)
		inA, err := f.rooms.Join(ctx, roomA, "")
		req.NoError(err)

		inB, err := f.rooms.Join(ctx, roomB, inA.Token)
		req.NoError(err)
		req.NotEqual(inA.Token, inB.Token)
		req.Equal(roomB, inB.RoomID)
	})

	t.Run("should fail on a missing room", func(t *testing.T) {
		f := newFixture(t, mocks.NewMockPublisher(ctrl), 2)
		_, err := f.rooms.Join(ctx, domain.NewRoomID(), "")
		require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	})
}

func TestRoomService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	req := require.New(t)

	f := newFixture(t, mocks.NewMockPublisher(ctrl), 2)
	roomID, err := f.rooms.Create(ctx)
	req.NoError(err)

	room, err := f.rooms.Get(ctx, roomID)
	req.NoError(err)
	req.Equal(roomID, room.ID)
	req.WithinDuration(time.Now(), room.CreatedAt, 5*time.Second)
	req.LessOrEqual(room.Remaining(time.Now()), lifetime)
	req.Empty(room.ConnectedParticipants)

	_, err = f.rooms.Get(ctx, domain.NewRoomID())
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestRoomService_Destroy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	issuer := auth.NewCredentialIssuer([]byte("key"), lifetime)

	newService := func(store *mocks.MockKeyedStore, publisher *mocks.MockPublisher) (*RoomService, repositories.Keys) {
		keys := repositories.NewKeys("")
		return NewRoomService(
			repositories.NewRoomRepository(store, keys),
			repositories.NewMessageRepository(store, keys, slog.Default()),
			publisher, issuer, lifetime, 2, slog.Default()), keys
	}

	t.Run("should attempt every effect when all of them fail", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockKeyedStore(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		service, keys := newService(store, publisher)
		roomID := domain.NewRoomID()

		store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(time.Minute, nil)
		publisher.EXPECT().Publish(gomock.Any(), event.NewRoomDestroyed(roomID)).Return(apperrors.ErrChannelUnavailable)
		store.EXPECT().Delete(gomock.Any(), keys.Meta(roomID)).Return(apperrors.ErrStoreUnavailable)
		store.EXPECT().Delete(gomock.Any(), keys.Participants(roomID)).Return(apperrors.ErrStoreUnavailable)
		store.EXPECT().Delete(gomock.Any(), keys.Messages(roomID)).Return(apperrors.ErrStoreUnavailable)

		err := service.Destroy(ctx, roomID)
		req.ErrorIs(err, apperrors.ErrStoreUnavailable)
	})

	t.Run("should succeed when only the notification fails", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockKeyedStore(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		service, keys := newService(store, publisher)
		roomID := domain.NewRoomID()

		store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(time.Minute, nil)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(apperrors.ErrChannelUnavailable)
		store.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(3)

		req.NoError(service.Destroy(ctx, roomID))
	})

	t.Run("should report a missing room without side effects", func(t *testing.T) {
		req := require.New(t)
		store := mocks.NewMockKeyedStore(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		service, keys := newService(store, publisher)
		roomID := domain.NewRoomID()

		store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(time.Duration(0), apperrors.ErrKeyNotFound)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
		store.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(service.Destroy(ctx, roomID), apperrors.ErrRoomNotFound)
	})
}

func TestRoomService_RemainingLifetime_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	store := mocks.NewMockKeyedStore(ctrl)
	keys := repositories.NewKeys("")
	service := NewRoomService(
		repositories.NewRoomRepository(store, keys),
		repositories.NewMessageRepository(store, keys, slog.Default()),
		mocks.NewMockPublisher(ctrl), auth.NewCredentialIssuer([]byte("key"), lifetime), lifetime, 2, slog.Default())
	roomID := domain.NewRoomID()

	store.EXPECT().TTL(gomock.Any(), keys.Meta(roomID)).Return(time.Duration(0), apperrors.ErrStoreUnavailable)
	_, err := service.RemainingLifetime(context.Background(), roomID)
	req.ErrorIs(err, apperrors.ErrStoreUnavailable)
}
