package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Prefix string
	// MaxLen bounds each room stream, older entries are trimmed.
	MaxLen int64
	// Retention is applied to a stream after every publish so streams of dead rooms vanish.
	Retention time.Duration
}

// NewRedisStreamBus fans events out across processes through one Redis stream per room.
// Subscribers read in fan-out mode without a consumer group: every process gets
// every event published after it subscribed, nothing older.
// The bus owns both clients and closes them on Close.
func NewRedisStreamBus(pubClient, subClient redis.UniversalClient, opts RedisOptions, log *slog.Logger) (*Bus, error) {
	logger := watermill.NewSlogLogger(log)
	marshaller := redisstream.DefaultMarshallerUnmarshaller{}

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client:        pubClient,
		Marshaller:    marshaller,
		DefaultMaxlen: opts.MaxLen,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: %w", err)
	}
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:       subClient,
		Unmarshaller: marshaller,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("redis stream subscriber: %w", err)
	}

	bus := &Bus{
		publisher:  publisher,
		subscriber: subscriber,
		prefix:     opts.Prefix,
		log:        log,
	}
	if opts.Retention > 0 {
		bus.afterWrite = func(ctx context.Context, topic string) {
			if err := pubClient.Expire(ctx, topic, opts.Retention).Err(); err != nil {
				log.Warn("Stream retention not applied", "topic", topic, "error", err)
			}
		}
	}
	return bus, nil
}
