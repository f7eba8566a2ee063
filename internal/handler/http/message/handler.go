package message

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/pkg/response"
)

// MessageService is the subset of the message service used by the handler
type MessageService interface {
	Send(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID, content string) (*domain.MessageResponse, error)
	ListByCall(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) ([]*domain.MessageResponse, error)
}

// Handler handles in-call chat HTTP requests
type Handler struct {
	messageService MessageService
}

// NewHandler creates a new message handler
func NewHandler(messageService MessageService) *Handler {
	return &Handler{
		messageService: messageService,
	}
}

// SendMessageRequest represents a chat message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage stores a message and relays it to the other participant
// POST /v1/calls/:id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "content is required")
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), current, callID, req.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, msg)
}

// GetMessages returns the call's messages in send order
// GET /v1/calls/:id/messages
func (h *Handler) GetMessages(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	messages, err := h.messageService.ListByCall(c.Request.Context(), current, callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, messages)
}
