package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pollchat/internal/core"
	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/proto"
	"github.com/vovakirdan/pollchat/internal/rpc"
)

// MessageHandlers maps the REST endpoints 1:1 onto the RPC procedures.
type MessageHandlers struct {
	svc rpc.ChatService
	log *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc rpc.ChatService, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{svc: svc, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// List returns messages newer than since_id (or last_id) in a room.
// GET /api/messages
func (h *MessageHandlers) List(c *gin.Context) {
	raw := c.Query("since_id")
	if raw == "" {
		raw = c.Query("last_id")
	}

	msgs, err := h.svc.GetMessages(c.Request.Context(), core.ParseWatermarkString(raw), c.Query("room"))
	if err != nil {
		chatlog.Ctx(c.Request.Context(), h.log).Error().Err(err).Msg("failed to list messages")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "message store unavailable"})
		return
	}
	if msgs == nil {
		msgs = []proto.Message{}
	}

	c.JSON(stdhttp.StatusOK, msgs)
}

// Create posts a message.
// POST /api/messages
func (h *MessageHandlers) Create(c *gin.Context) {
	var req proto.SendMessageParams
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *stdhttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(stdhttp.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		chatlog.Ctx(c.Request.Context(), h.log).Debug().Err(err).Msg("invalid create message request")
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	id, err := h.svc.SendMessage(c.Request.Context(), req.Username, req.Text, req.Room)
	if err != nil {
		if core.IsValidation(err) {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		chatlog.Ctx(c.Request.Context(), h.log).Error().Err(err).Msg("failed to send message")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "message store unavailable"})
		return
	}

	c.JSON(stdhttp.StatusOK, proto.SendMessageResult{ID: id})
}
