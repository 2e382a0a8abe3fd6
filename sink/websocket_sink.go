package sink

import (
	"context"
	"fmt"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameWriter is the part of a websocket connection the sink writes to.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// WebsocketSink decouples the room relay from one client connection.
// Events are buffered, a consumer slower than the delivery timeout loses events:
// the history endpoint stays authoritative.
type WebsocketSink struct {
	events  chan event.DomainEvent
	closed  chan struct{}
	once    sync.Once
	timeout time.Duration
	log     *slog.Logger
}

func NewWebsocketSink(bufferSize int, timeout time.Duration, log *slog.Logger) *WebsocketSink {
	return &WebsocketSink{
		events:  make(chan event.DomainEvent, bufferSize),
		closed:  make(chan struct{}),
		timeout: timeout,
		log:     log,
	}
}

func (s *WebsocketSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.events <- e:
		return nil
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s dropped", apperrors.ErrSinkTimeout, e.Name())
	}
}

// Pump writes buffered events as text frames until ctx is done, the sink is closed,
// a write fails, or the room is destroyed. A destroy frame is always the last one.
func (s *WebsocketSink) Pump(ctx context.Context, conn FrameWriter) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closed:
			return nil
		case e := <-s.events:
			frame, err := event.Encode(e)
			if err != nil {
				s.log.Warn("Skipping unencodable event", "event", e.Name(), "error", err)
				continue
			}
			if err = conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
				return err
			}
			if err = conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
			if e.Name() == event.RoomDestroyedName {
				return nil
			}
		}
	}
}

func (s *WebsocketSink) Close() {
	s.once.Do(func() { close(s.closed) })
}
