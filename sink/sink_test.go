package sink

import (
	"context"
	"encoding/json"
	"hidden-talk/domain"
	"hidden-talk/domain/event"
	apperrors "hidden-talk/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func posted(roomID domain.RoomID, text string) event.MessagePosted {
	return event.MessagePosted{ID: uuid.New(), Room: roomID.String(), Sender: "alice", Text: text, Timestamp: time.Now().UnixMilli()}
}

func TestWebsocketSink_Pump_Stops_After_Destroy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	roomID := domain.NewRoomID()
	s := NewWebsocketSink(8, time.Second, slog.Default())
	conn := &recordingConn{}

	req.NoError(s.Consume(ctx, posted(roomID, "hi")))
	req.NoError(s.Consume(ctx, event.NewRoomDestroyed(roomID)))
	req.NoError(s.Consume(ctx, posted(roomID, "after")))

	req.NoError(s.Pump(ctx, conn))

	frames := conn.Frames()
	req.Len(frames, 2)
	var envelope event.Envelope
	req.NoError(json.Unmarshal(frames[0], &envelope))
	req.Equal(event.MessagePostedName, envelope.Event)
	req.NoError(json.Unmarshal(frames[1], &envelope))
	req.Equal(event.RoomDestroyedName, envelope.Event)
	req.JSONEq(`{"isDestroyed":true}`, string(envelope.Data))
}

func TestWebsocketSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	roomID := domain.NewRoomID()
	s := NewWebsocketSink(1, 20*time.Millisecond, slog.Default())

	req.NoError(s.Consume(ctx, posted(roomID, "buffered")))
	err := s.Consume(ctx, posted(roomID, "dropped"))
	req.ErrorIs(err, apperrors.ErrSinkTimeout)
}

func TestWebsocketSink_Closed_Accepts_Silently(t *testing.T) {
	req := require.New(t)
	s := NewWebsocketSink(0, time.Second, slog.Default())
	s.Close()
	s.Close()

	req.NoError(s.Consume(context.Background(), posted(domain.NewRoomID(), "ignored")))
	req.NoError(s.Pump(context.Background(), &recordingConn{}))
}
