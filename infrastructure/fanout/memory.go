package fanout

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewMemoryBus fans events out inside a single process.
func NewMemoryBus(bufferSize int64, log *slog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: bufferSize,
		Persistent:          false,
	}, watermill.NewSlogLogger(log))
	return &Bus{
		publisher:  pubSub,
		subscriber: pubSub,
		log:        log,
	}
}
