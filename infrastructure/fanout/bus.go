// Package fanout carries room events between the write path and the realtime relay.
// Delivery is best effort: no persistence is relied upon and late subscribers get no replay.
package fanout

import (
	"context"
	"fmt"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const eventMetadata = "event"

// Bus implements contract.Publisher and contract.Subscriber on top of a Watermill pub/sub.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	prefix     string
	afterWrite func(ctx context.Context, topic string)
	log        *slog.Logger
}

// Topic is the channel name of a room.
func (b *Bus) Topic(roomID domain.RoomID) string {
	return b.prefix + "room:" + roomID.String()
}

func (b *Bus) Publish(ctx context.Context, e event.DomainEvent) error {
	payload, err := event.Encode(e)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", apperrors.ErrChannelUnavailable, e.Name(), err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(eventMetadata, string(e.Name()))
	msg.SetContext(ctx)

	topic := b.Topic(e.RoomID())
	if err = b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrChannelUnavailable, err)
	}
	if b.afterWrite != nil {
		b.afterWrite(ctx, topic)
	}
	return nil
}

// Subscribe streams the room events until ctx is done, then closes the channel.
// Undecodable messages are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context, roomID domain.RoomID) (<-chan event.DomainEvent, error) {
	messages, err := b.subscriber.Subscribe(ctx, b.Topic(roomID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrChannelUnavailable, err)
	}
	out := make(chan event.DomainEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			e, err := event.Decode(msg.Payload)
			msg.Ack()
			if err != nil {
				b.log.Warn("Dropping undecodable event", "room_id", roomID, "message_id", msg.UUID, "error", err)
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	pubErr := b.publisher.Close()
	subErr := b.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
