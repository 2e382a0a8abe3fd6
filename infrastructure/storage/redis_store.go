package storage

import (
	"context"
	"errors"
	"fmt"
	"hidden-talk/contract"
	apperrors "hidden-talk/errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the networked KeyedStore, lists map onto RPUSH/LRANGE.
type RedisStore struct {
	client redis.UniversalClient
	log    *slog.Logger
}

func NewRedisStore(client redis.UniversalClient, log *slog.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// OpenRedisStore dials and pings the server so a bad address fails at startup.
func OpenRedisStore(ctx context.Context, opts RedisOptions, log *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	store := NewRedisStore(client, log)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.wrap(key, r.client.Set(ctx, key, value, ttl).Err())
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, r.wrap(key, err)
	}
	return value, nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.wrap(fmt.Sprint(keys), r.client.Del(ctx, keys...).Err())
}

// TTL relies on PTTL: -2 means missing, -1 means no expiration.
func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, r.wrap(key, err)
	}
	switch {
	case ttl == -2 || ttl == -2*time.Millisecond:
		return 0, apperrors.ErrKeyNotFound
	case ttl == -1 || ttl == -1*time.Millisecond:
		return contract.NoExpiry, nil
	}
	return ttl, nil
}

// appendBound runs server side so the list copies the owner's expiration of the same instant.
// KEYS[1] list, KEYS[2] owner, ARGV[1] value. Returns -2 when the owner is missing.
var appendBound = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[2])
if ttl == -2 then
	return -2
end
redis.call('RPUSH', KEYS[1], ARGV[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
else
	redis.call('PERSIST', KEYS[1])
end
return ttl
`)

func (r *RedisStore) Append(ctx context.Context, key string, value []byte, owner string) error {
	res, err := appendBound.Run(ctx, r.client, []string{key, owner}, value).Int64()
	if err != nil {
		return r.wrap(key, err)
	}
	if res == -2 {
		return apperrors.ErrKeyNotFound
	}
	return nil
}

func (r *RedisStore) ReadList(ctx context.Context, key string) ([][]byte, error) {
	values, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, r.wrap(key, err)
	}
	res := make([][]byte, 0, len(values))
	for _, v := range values {
		res = append(res, []byte(v))
	}
	return res, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.wrap("ping", r.client.Ping(ctx).Err())
}

func (r *RedisStore) Close() error {
	r.log.Info("Closing Redis client...")
	return r.client.Close()
}

// Client exposes the connection so the fan-out can share it.
func (r *RedisStore) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisStore) wrap(key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return apperrors.ErrKeyNotFound
	default:
		return fmt.Errorf("%w: redis %s: %v", apperrors.ErrStoreUnavailable, key, err)
	}
}
