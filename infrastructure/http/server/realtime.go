package server

import (
	"context"
	"hidden-talk/domain"
	"hidden-talk/sink"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

// Realtime upgrades to a websocket and pushes the room events until the client leaves,
// the room is destroyed or its lifetime runs out. Nothing is replayed on connect,
// clients catch up through the history endpoint.
func (h *Handler) Realtime(c *gin.Context) {
	roomID := credentialOf(c).RoomID
	room, err := h.rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		h.fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		h.log.Warn("Websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	connectionID := uuid.NewString()
	connectionSink := sink.NewWebsocketSink(h.options.ConnectionBufferSize, h.options.DeliveryTimeout, h.log)
	defer connectionSink.Close()

	if err = h.relay.Attach(connectionID, roomID, connectionSink); err != nil {
		h.log.Warn("Realtime unavailable for room", "room_id", roomID, "error", err)
		closeWith(conn, websocket.CloseTryAgainLater, "channel unavailable")
		return
	}
	defer h.relay.Detach(connectionID, roomID)

	ctx, cancel := lifetimeContext(c.Request.Context(), room)
	defer cancel()
	go readUntilClosed(conn, cancel)

	h.log.Debug("Realtime connection open", "room_id", roomID, "connection_id", connectionID)
	if err = connectionSink.Pump(ctx, conn); err != nil {
		h.log.Debug("Realtime connection lost", "room_id", roomID, "connection_id", connectionID, "error", err)
		return
	}
	closeWith(conn, websocket.CloseNormalClosure, "")
	h.log.Debug("Realtime connection closed", "room_id", roomID, "connection_id", connectionID)
}

// lifetimeContext ends with the room. A room without expiry keeps the parent deadline.
func lifetimeContext(parent context.Context, room domain.Room) (context.Context, context.CancelFunc) {
	if room.ExpiresAt.IsZero() {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, room.ExpiresAt)
}

// readUntilClosed drains client frames, the only way to notice a client going away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeGrace))
}
