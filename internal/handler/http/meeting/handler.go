package meeting

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/pkg/response"
)

// MeetingService is the subset of the meeting service used by the handler
type MeetingService interface {
	Create(ctx context.Context, caller domain.AuthenticatedUser) (*domain.MeetingResponse, error)
	IsExist(ctx context.Context, code string) (bool, error)
	IsAdmin(ctx context.Context, caller domain.AuthenticatedUser, code string) (bool, error)
	HasPermissionToJoin(ctx context.Context, caller domain.AuthenticatedUser, code string) (bool, error)
	AddUserInMeeting(ctx context.Context, caller domain.AuthenticatedUser, code string) (*domain.ParticipantResponse, error)
	RemoveFromMeeting(ctx context.Context, caller domain.AuthenticatedUser, code string) error
	GetAdminPermission(ctx context.Context, caller domain.AuthenticatedUser, code string) error
	GeneratePermissionToUsers(ctx context.Context, caller domain.AuthenticatedUser, code string, userIDs []uuid.UUID) ([]uuid.UUID, error)
	GetWaitingUsers(ctx context.Context, caller domain.AuthenticatedUser, code string) ([]*domain.UserResponse, error)
	GetMeetingParticipants(ctx context.Context, caller domain.AuthenticatedUser, code string) ([]*domain.ParticipantResponse, error)
	GetMeetingParticipantsAll(ctx context.Context, caller domain.AuthenticatedUser, code string) ([]*domain.ParticipantResponse, error)
}

// Handler handles meeting room HTTP requests
type Handler struct {
	meetingService MeetingService
}

// NewHandler creates a new meeting handler
func NewHandler(meetingService MeetingService) *Handler {
	return &Handler{
		meetingService: meetingService,
	}
}

// GrantPermissionRequest lists users the admin lets in
type GrantPermissionRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1,max=100"`
}

// CreateMeeting creates a meeting administered by the caller
// POST /v1/meetings
func (h *Handler) CreateMeeting(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	meeting, err := h.meetingService.Create(c.Request.Context(), current)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, meeting)
}

// Exists reports whether a meeting code is in use. No authentication.
// GET /v1/meetings/:code/exists
func (h *Handler) Exists(c *gin.Context) {
	exists, err := h.meetingService.IsExist(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exists": exists})
}

// IsAdmin reports whether the caller created the meeting
// GET /v1/meetings/:code/admin
func (h *Handler) IsAdmin(c *gin.Context) {
	h.check(c, "is_admin", h.meetingService.IsAdmin)
}

// HasPermission reports whether the caller may join without approval
// GET /v1/meetings/:code/permission
func (h *Handler) HasPermission(c *gin.Context) {
	h.check(c, "has_permission", h.meetingService.HasPermissionToJoin)
}

func (h *Handler) check(c *gin.Context, field string, fn func(context.Context, domain.AuthenticatedUser, string) (bool, error)) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	result, err := fn(c.Request.Context(), current, c.Param("code"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{field: result})
}

// GrantPermission lets waiting users in (admin only)
// POST /v1/meetings/:code/permissions
func (h *Handler) GrantPermission(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var req GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "user_ids must be a non-empty list of UUIDs")
		return
	}

	granted, err := h.meetingService.GeneratePermissionToUsers(c.Request.Context(), current, c.Param("code"), req.UserIDs)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"granted": granted})
}

// RequestAdmission puts the caller in the waiting room and notifies the admin
// POST /v1/meetings/:code/waiting
func (h *Handler) RequestAdmission(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.meetingService.GetAdminPermission(c.Request.Context(), current, c.Param("code")); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"message": "Admin has been asked for permission"})
}

// GetWaitingUsers lists the waiting room (admin only)
// GET /v1/meetings/:code/waiting
func (h *Handler) GetWaitingUsers(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	users, err := h.meetingService.GetWaitingUsers(c.Request.Context(), current, c.Param("code"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}

// Join enters the meeting
// POST /v1/meetings/:code/participants
func (h *Handler) Join(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	participant, err := h.meetingService.AddUserInMeeting(c.Request.Context(), current, c.Param("code"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, participant)
}

// Leave removes the caller from the meeting
// DELETE /v1/meetings/:code/participants/me
func (h *Handler) Leave(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.meetingService.RemoveFromMeeting(c.Request.Context(), current, c.Param("code")); err != nil {
		response.FromError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetParticipants lists the other participants
// GET /v1/meetings/:code/participants
func (h *Handler) GetParticipants(c *gin.Context) {
	h.participants(c, h.meetingService.GetMeetingParticipants)
}

// GetAllParticipants lists every participant, caller first, with admin flags
// GET /v1/meetings/:code/participants/all
func (h *Handler) GetAllParticipants(c *gin.Context) {
	h.participants(c, h.meetingService.GetMeetingParticipantsAll)
}

func (h *Handler) participants(c *gin.Context, fn func(context.Context, domain.AuthenticatedUser, string) ([]*domain.ParticipantResponse, error)) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	list, err := fn(c.Request.Context(), current, c.Param("code"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, list)
}
