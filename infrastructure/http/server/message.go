package server

import (
	"fmt"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type PostMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// MessageResponse carries the ownership token only when it belongs to the caller.
type MessageResponse struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
	Token     *string `json:"token,omitempty"`
}

type PostMessageResponse struct {
	Message MessageResponse `json:"message"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

func (h *Handler) PostMessage(c *gin.Context) {
	var request PostMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.fail(c, fmt.Errorf("%w: malformed body", apperrors.ErrValidation))
		return
	}
	credential := credentialOf(c)
	message, err := h.messages.Admit(c.Request.Context(), credential.RoomID, credential.Token, request.Sender, request.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, PostMessageResponse{Message: toMessageResponse(message)})
}

func (h *Handler) ListMessages(c *gin.Context) {
	credential := credentialOf(c)
	messages, err := h.messages.List(c.Request.Context(), credential.RoomID, credential.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ListMessagesResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
			return toMessageResponse(m)
		}),
	})
}

func toMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp.UnixMilli(),
		Token:     m.OwnerToken,
	}
}
