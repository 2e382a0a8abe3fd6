//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	"reflect"
	"time"
)

// NoExpiry is returned by KeyedStore.TTL for a key that exists without expiration.
const NoExpiry time.Duration = -1

// KeyedStore is the durable side of the system: a key-value store with per-key expiration.
// Missing keys are reported with errors.ErrKeyNotFound.
type KeyedStore interface {
	// Set writes a value, ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes keys, deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
	// TTL returns the remaining lifetime, NoExpiry, or errors.ErrKeyNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Append adds a value at the tail of a list key, creating it if needed, and gives
	// the list the expiration owner has at that moment, in one atomic step.
	// A missing owner is errors.ErrKeyNotFound and nothing is written.
	Append(ctx context.Context, key string, value []byte, owner string) error
	// ReadList returns the whole list in append order, empty for a missing key.
	ReadList(ctx context.Context, key string) ([][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher is the best-effort notification side: no persistence, no replay.
type Publisher interface {
	Publish(ctx context.Context, e event.DomainEvent) error
}

// Subscriber streams the events of one room until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, roomID domain.RoomID) (<-chan event.DomainEvent, error)
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	Subscribe(connectionID string, roomID domain.RoomID, sink EventSink) (first bool)
	Unsubscribe(connectionID string, roomID domain.RoomID) (last bool)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
