package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hidden-talk/contract"
	apperrors "hidden-talk/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds the optimistic retries of a list append racing another append.
const maxConflictRetries = 16

// listSeparator splits a list header key from its item keys.
// "messages:abc" owns "messages:abc\x00<index>", never "messages:abcd...".
const listSeparator = byte(0)

// BadgerStore is the embedded KeyedStore.
// Expiration is Badger's own per-entry ExpiresAt, so nothing in-process tracks room lifetimes.
//
// A list key is stored as a header entry holding the item count, followed by one
// entry per item keyed "{key}\x00{index padded to 20 digits}" so a prefix scan
// returns items in append order. Every entry of a list carries the ExpiresAt of the
// owner key it was appended against, never a later one.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

// OpenBadgerStore opens (or creates) the database directory.
func OpenBadgerStore(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return NewBadgerStore(db, log), nil
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return b.wrap(b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}))
}

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return value, nil
}

// Delete removes each key and, when the key is a list, all of its items.
func (b *BadgerStore) Delete(_ context.Context, keys ...string) error {
	return b.wrap(b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			itemKeys, err := collectItemKeys(txn, key)
			if err != nil {
				return err
			}
			for _, k := range itemKeys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	}))
}

func (b *BadgerStore) TTL(_ context.Context, key string) (time.Duration, error) {
	var expiresAt uint64
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		expiresAt = item.ExpiresAt()
		return nil
	})
	if err != nil {
		return 0, b.wrap(err)
	}
	return remaining(expiresAt, time.Now()), nil
}

// Append serializes concurrent appends through Badger's conflict detection:
// two transactions bumping the same header cannot both commit, the loser retries.
// The new item and the header take the owner's ExpiresAt, earlier items keep theirs,
// so the cost of an append does not depend on the length of the list.
// Owner is in the read set, a destroy committing first makes the append retry and miss it.
func (b *BadgerStore) Append(_ context.Context, key string, value []byte, owner string) error {
	return b.withConflictRetry(func(txn *badger.Txn) error {
		bound, err := txn.Get([]byte(owner))
		if err != nil {
			return err
		}
		expiresAt := bound.ExpiresAt()

		var count uint64
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			header, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(header) != 8 {
				return fmt.Errorf("key %q is not a list", key)
			}
			count = binary.BigEndian.Uint64(header)
		}

		if err = setWithExpiry(txn, itemKey(key, count), value, expiresAt); err != nil {
			return err
		}
		header := make([]byte, 8)
		binary.BigEndian.PutUint64(header, count+1)
		return setWithExpiry(txn, []byte(key), header, expiresAt)
	})
}

func (b *BadgerStore) ReadList(_ context.Context, key string) ([][]byte, error) {
	var values [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		prefix := itemPrefix(key)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return values, nil
}

func (b *BadgerStore) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("%w: badger is closed", apperrors.ErrStoreUnavailable)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	b.log.Info("Closing BadgerDB...")
	return b.db.Close()
}

// DB exposes the underlying handle for read-only tooling.
func (b *BadgerStore) DB() *badger.DB {
	return b.db
}

func (b *BadgerStore) withConflictRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return b.wrap(err)
		}
		b.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	return b.wrap(err)
}

// wrap maps Badger errors onto the store contract.
func (b *BadgerStore) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return apperrors.ErrKeyNotFound
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
}

func setWithExpiry(txn *badger.Txn, key, value []byte, expiresAt uint64) error {
	entry := badger.NewEntry(key, value)
	entry.ExpiresAt = expiresAt
	return txn.SetEntry(entry)
}

func collectItemKeys(txn *badger.Txn, key string) ([][]byte, error) {
	prefix := itemPrefix(key)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func itemPrefix(key string) []byte {
	return append([]byte(key), listSeparator)
}

func itemKey(key string, index uint64) []byte {
	return append(itemPrefix(key), []byte(fmt.Sprintf("%020d", index))...)
}

// remaining converts Badger's absolute unix-seconds expiry into a TTL.
func remaining(expiresAt uint64, now time.Time) time.Duration {
	if expiresAt == 0 {
		return contract.NoExpiry
	}
	left := time.Unix(int64(expiresAt), 0).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// IsListItem reports whether a raw key belongs to a list rather than being a header or plain key.
func IsListItem(key []byte) bool {
	return bytes.IndexByte(key, listSeparator) >= 0
}
