package signal

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/pkg/response"
)

// Relayer forwards WebRTC negotiation packets
type Relayer interface {
	Relay(ctx context.Context, caller domain.AuthenticatedUser, packet *domain.SignalPacket) error
}

// Handler handles WebRTC signal relay over HTTP
type Handler struct {
	relayer Relayer
}

// NewHandler creates a new signal handler
func NewHandler(relayer Relayer) *Handler {
	return &Handler{relayer: relayer}
}

// Relay forwards an offer, answer or ICE candidate to its recipient
// POST /v1/signals
func (h *Handler) Relay(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var packet domain.SignalPacket
	if err := c.ShouldBindJSON(&packet); err != nil {
		response.ValidationError(c, "Invalid signal packet")
		return
	}

	if err := h.relayer.Relay(c.Request.Context(), current, &packet); err != nil {
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}
