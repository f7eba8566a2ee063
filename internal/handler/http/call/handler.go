package call

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/service/call"
	"talkbridge-backend/pkg/pagination"
	"talkbridge-backend/pkg/response"
)

// CallService is the subset of the call service used by the handler
type CallService interface {
	Initiate(ctx context.Context, caller domain.AuthenticatedUser, input *call.InitiateInput) (*domain.CallResponse, error)
	RingingAck(ctx context.Context, caller domain.AuthenticatedUser, callID, callerID uuid.UUID) error
	Accept(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error)
	Reject(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error)
	End(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error)
	Finish(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error)
	ReceiverReady(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) error
	ToggleMedia(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID, mediaType domain.MediaType, isOn bool) error
	SendReaction(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID, emoji string) error
	HandAction(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID, action domain.HandState) error
	GetCall(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallDetail, error)
	History(ctx context.Context, caller domain.AuthenticatedUser, page, size int) (*pagination.Page[*domain.CallDetail], error)
}

// Handler handles call HTTP requests
type Handler struct {
	callService CallService
}

// NewHandler creates a new call handler
func NewHandler(callService CallService) *Handler {
	return &Handler{
		callService: callService,
	}
}

// InitiateCallRequest represents call initiation request
type InitiateCallRequest struct {
	CallerEmail   string          `json:"caller_email" binding:"required,email"`
	ReceiverEmail string          `json:"receiver_email" binding:"required,email"`
	Mode          domain.CallMode `json:"mode" binding:"required"`
}

// RingingRequest identifies the caller whose call is ringing
type RingingRequest struct {
	CallerID string `json:"caller_id" binding:"required,uuid"`
}

// MediaRequest represents a camera or microphone toggle
type MediaRequest struct {
	MediaType domain.MediaType `json:"media_type" binding:"required"`
	IsOn      *bool            `json:"is_on" binding:"required"`
}

// ReactionRequest carries an emoji reaction
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=64"`
}

// HandRequest carries a hand raise or lower
type HandRequest struct {
	Action domain.HandState `json:"action" binding:"required"`
}

// InitiateCall places a new call
// POST /v1/calls
func (h *Handler) InitiateCall(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var req InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	resp, err := h.callService.Initiate(c.Request.Context(), current, &call.InitiateInput{
		CallerEmail:   req.CallerEmail,
		ReceiverEmail: req.ReceiverEmail,
		Mode:          req.Mode,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// Ringing acknowledges that the receiver's device is ringing
// POST /v1/calls/:id/ringing
func (h *Handler) Ringing(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	var req RingingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "caller_id must be a UUID")
		return
	}
	callerID := uuid.MustParse(req.CallerID)

	if err := h.callService.RingingAck(c.Request.Context(), current, callID, callerID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Caller notified"})
}

// Accept answers a ringing call
// POST /v1/calls/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	h.transition(c, h.callService.Accept)
}

// Reject declines a ringing call
// POST /v1/calls/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.transition(c, h.callService.Reject)
}

// End cancels or ends a call as its caller
// POST /v1/calls/:id/end
func (h *Handler) End(c *gin.Context) {
	h.transition(c, h.callService.End)
}

// Finish hangs up an accepted call as either participant
// POST /v1/calls/:id/finish
func (h *Handler) Finish(c *gin.Context) {
	h.transition(c, h.callService.Finish)
}

type transitionFunc func(ctx context.Context, caller domain.AuthenticatedUser, callID uuid.UUID) (*domain.CallResponse, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	resp, err := fn(c.Request.Context(), current, callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Ready tells the caller the receiver finished media setup
// POST /v1/calls/:id/ready
func (h *Handler) Ready(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	if err := h.callService.ReceiverReady(c.Request.Context(), current, callID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Caller notified"})
}

// ToggleMedia relays a camera or microphone state change
// POST /v1/calls/:id/media
func (h *Handler) ToggleMedia(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	var req MediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.callService.ToggleMedia(c.Request.Context(), current, callID, req.MediaType, *req.IsOn); err != nil {
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SendReaction relays an emoji
// POST /v1/calls/:id/reactions
func (h *Handler) SendReaction(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.callService.SendReaction(c.Request.Context(), current, callID, req.Emoji); err != nil {
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandAction relays a raised or lowered hand
// POST /v1/calls/:id/hand
func (h *Handler) HandAction(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	var req HandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.callService.HandAction(c.Request.Context(), current, callID, req.Action); err != nil {
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCall returns one call with both participants
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	current, callID, ok := h.callContext(c)
	if !ok {
		return
	}

	detail, err := h.callService.GetCall(c.Request.Context(), current, callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// History returns the caller's call history
// GET /v1/calls/history?page=&size=
func (h *Handler) History(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.Query("size"))

	result, err := h.callService.History(c.Request.Context(), current, page, size)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// callContext resolves the caller and the :id path parameter, answering the request on failure
func (h *Handler) callContext(c *gin.Context) (domain.AuthenticatedUser, uuid.UUID, bool) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return domain.AuthenticatedUser{}, uuid.Nil, false
	}

	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return domain.AuthenticatedUser{}, uuid.Nil, false
	}
	return current, callID, true
}
