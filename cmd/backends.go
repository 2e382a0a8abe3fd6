package main

import (
	"context"
	"fmt"
	"hidden-talk/contract"
	apperrors "hidden-talk/errors"
	"hidden-talk/infrastructure/fanout"
	"hidden-talk/infrastructure/storage"
	"hidden-talk/internal"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const memoryBusBuffer = 256

func openStore(ctx context.Context, config internal.Config, log *slog.Logger) (contract.KeyedStore, error) {
	switch config.StoreBackend {
	case internal.BackendBadger:
		store, err := storage.OpenBadgerStore(config.BadgerFilepath, log)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return store, nil
	case internal.BackendRedis:
		store, err := storage.OpenRedisStore(ctx, storage.RedisOptions{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: store %q", apperrors.ErrUnknownBackend, config.StoreBackend)
	}
}

// fanoutBus is what the core needs from the channel, plus its lifecycle.
type fanoutBus interface {
	contract.Publisher
	contract.Subscriber
	Close() error
}

func openBus(config internal.Config, log *slog.Logger) (fanoutBus, error) {
	switch config.FanoutBackend {
	case internal.BackendMemory:
		return fanout.NewMemoryBus(memoryBusBuffer, log), nil
	case internal.BackendRedis:
		// Publisher and subscriber each close their own client.
		bus, err := fanout.NewRedisStreamBus(newRedisClient(config), newRedisClient(config), fanout.RedisOptions{
			Prefix:    config.KeyPrefix,
			MaxLen:    config.FanoutMaxLen,
			Retention: config.RoomLifetime,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("redis fan-out: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("%w: fan-out %q", apperrors.ErrUnknownBackend, config.FanoutBackend)
	}
}

func newRedisClient(config internal.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
}
