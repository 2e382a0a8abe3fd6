package runtime

import (
	"context"
	"errors"
	"hidden-talk/contract"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"log/slog"
	"sync"
)

// Relay bridges the fan-out channel to the realtime connections of this process.
// It holds one channel subscription per room while the room has at least one
// connection, and none otherwise. Delivery is best effort.
type Relay struct {
	mu         sync.Mutex
	subscriber contract.Subscriber
	registry   contract.IRegistry
	log        *slog.Logger
	baseCtx    context.Context
	cancelAll  context.CancelFunc
	rooms      map[domain.RoomID]*roomSubscription
	wg         sync.WaitGroup
}

// roomSubscription is compared by pointer, an ended subscription only removes itself.
type roomSubscription struct {
	cancel context.CancelFunc
}

func NewRelay(subscriber contract.Subscriber, registry contract.IRegistry, log *slog.Logger) *Relay {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Relay{
		subscriber: subscriber,
		registry:   registry,
		log:        log,
		baseCtx:    baseCtx,
		cancelAll:  cancel,
		rooms:      make(map[domain.RoomID]*roomSubscription),
	}
}

// Attach registers a connection sink and opens the room subscription when the room has none,
// either because it is the first connection or because the channel ended the previous one.
func (r *Relay) Attach(connectionID string, roomID domain.RoomID, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.registry.Subscribe(connectionID, roomID, sink)
	if _, ok := r.rooms[roomID]; ok {
		return nil
	}
	if !first {
		r.log.Info("Reopening room subscription", "room_id", roomID)
	}
	roomCtx, cancel := context.WithCancel(r.baseCtx)
	events, err := r.subscriber.Subscribe(roomCtx, roomID)
	if err != nil {
		cancel()
		r.registry.Unsubscribe(connectionID, roomID)
		r.log.Warn("Room subscription failed", "room_id", roomID, "error", err)
		return err
	}
	subscription := &roomSubscription{cancel: cancel}
	r.rooms[roomID] = subscription
	r.wg.Add(1)
	go r.dispatch(roomCtx, roomID, subscription, events)
	r.log.Debug("Room subscription opened", "room_id", roomID)
	return nil
}

// Detach unregisters a connection and drops the room subscription with the last one.
func (r *Relay) Detach(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registry.Unsubscribe(connectionID, roomID) {
		return
	}
	if subscription, ok := r.rooms[roomID]; ok {
		subscription.cancel()
		delete(r.rooms, roomID)
		r.log.Debug("Room subscription closed", "room_id", roomID)
	}
}

// Run keeps the relay alive until ctx is done, then closes every subscription.
func (r *Relay) Run(ctx context.Context) error {
	<-ctx.Done()
	r.Close()
	return nil
}

func (r *Relay) Close() {
	r.mu.Lock()
	r.cancelAll()
	r.rooms = make(map[domain.RoomID]*roomSubscription)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Relay) dispatch(ctx context.Context, roomID domain.RoomID, subscription *roomSubscription, events <-chan event.DomainEvent) {
	defer r.wg.Done()
	for e := range events {
		for _, sink := range r.registry.GetSinksForRoom(roomID) {
			if err := sink.Consume(ctx, e); err != nil {
				if errors.Is(err, apperrors.ErrSinkTimeout) {
					r.log.Debug("Slow connection, event dropped", "room_id", roomID, "event", e.Name())
					continue
				}
				if ctx.Err() == nil {
					r.log.Warn("Event delivery failed", "room_id", roomID, "error", err)
				}
			}
		}
	}
	if ctx.Err() == nil {
		r.log.Warn("Room subscription ended by the channel", "room_id", roomID)
		r.forget(roomID, subscription)
	}
}

// forget drops an ended subscription so the next Attach to the room opens a new one.
func (r *Relay) forget(roomID domain.RoomID, subscription *roomSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == subscription {
		delete(r.rooms, roomID)
	}
	subscription.cancel()
}
