package server

import (
	"hidden-talk/auth"
	"hidden-talk/domain"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type JoinRoomResponse struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

type RoomResponse struct {
	RoomID       string   `json:"roomId"`
	CreatedAt    int64    `json:"createdAt"`
	Participants []string `json:"participants"`
	TTL          int64    `json:"ttl"`
}

type TTLResponse struct {
	TTL int64 `json:"ttl"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	roomID, err := h.rooms.Create(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: roomID.String()})
}

// JoinRoom returns the caller's credential and stores it as a cookie for browser clients.
// A caller presenting a credential already valid for the room gets the same one back.
func (h *Handler) JoinRoom(c *gin.Context) {
	roomID, err := auth.ValidateRoomID(c.Query(auth.RoomIDParam))
	if err != nil {
		h.fail(c, err)
		return
	}
	credential, err := h.rooms.Join(c.Request.Context(), roomID, auth.TokenFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, credential.Token, int(h.options.CookieMaxAge.Seconds()), "/", "", h.options.CookieSecure, true)
	c.JSON(http.StatusOK, JoinRoomResponse{RoomID: roomID.String(), Token: credential.Token})
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), credentialOf(c).RoomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RoomResponse{
		RoomID:    room.ID.String(),
		CreatedAt: room.CreatedAt.UnixMilli(),
		Participants: lo.Map(room.ConnectedParticipants, func(p domain.ParticipantID, _ int) string {
			return string(p)
		}),
		TTL: seconds(room.Remaining(time.Now())),
	})
}

func (h *Handler) GetRemainingLifetime(c *gin.Context) {
	ttl, err := h.rooms.RemainingLifetime(c.Request.Context(), credentialOf(c).RoomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TTLResponse{TTL: seconds(ttl)})
}

func (h *Handler) DestroyRoom(c *gin.Context) {
	if err := h.rooms.Destroy(c.Request.Context(), credentialOf(c).RoomID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
