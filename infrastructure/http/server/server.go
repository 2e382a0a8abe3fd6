// Package server exposes the room and message operations over HTTP,
// plus the realtime websocket endpoint.
package server

import (
	"hidden-talk/auth"
	"hidden-talk/contract"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"hidden-talk/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Relay is the part of the realtime relay the websocket endpoint needs.
type Relay interface {
	Attach(connectionID string, roomID domain.RoomID, sink contract.EventSink) error
	Detach(connectionID string, roomID domain.RoomID)
}

type Options struct {
	CookieSecure         bool
	CookieMaxAge         time.Duration
	ConnectionBufferSize int
	DeliveryTimeout      time.Duration
}

type Handler struct {
	rooms    services.IRoomService
	messages services.IMessageService
	guard    auth.Guard
	relay    Relay
	upgrader websocket.Upgrader
	options  Options
	log      *slog.Logger
}

func NewHandler(
	rooms services.IRoomService,
	messages services.IMessageService,
	guard auth.Guard,
	relay Relay,
	options Options,
	log *slog.Logger,
) *Handler {
	return &Handler{
		rooms:    rooms,
		messages: messages,
		guard:    guard,
		relay:    relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The credential is the access control, any origin may connect with it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		options: options,
		log:     log,
	}
}

// NewRouter wires every route. Only room creation and join go without a credential.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	api := router.Group("/api")
	api.POST("/room", h.CreateRoom)
	api.POST("/room/join", h.JoinRoom)

	guarded := api.Group("", auth.RequireCredential(h.guard))
	guarded.GET("/room", h.GetRoom)
	guarded.GET("/room/ttl", h.GetRemainingLifetime)
	guarded.DELETE("/room", h.DestroyRoom)
	guarded.POST("/messages", h.PostMessage)
	guarded.GET("/messages", h.ListMessages)
	guarded.GET("/realtime", h.Realtime)
	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// fail writes the public form of err. Server side failures are logged with their cause.
func (h *Handler) fail(c *gin.Context, err error) {
	status, message := apperrors.MapToHTTPError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func credentialOf(c *gin.Context) domain.Credential {
	credential, _ := auth.CredentialFrom(c)
	return credential
}
