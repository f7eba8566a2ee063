package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/service/user"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/response"
)

// UserService is the subset of the user service used by the handler
type UserService interface {
	Me(ctx context.Context, caller domain.AuthenticatedUser) (*domain.UserProfile, error)
	CompleteAccount(ctx context.Context, caller domain.AuthenticatedUser, input *user.CompleteAccountInput) (*domain.UserProfile, error)
	Search(ctx context.Context, caller domain.AuthenticatedUser, query string, size int) ([]*domain.UserResponse, error)
	Suggested(ctx context.Context, caller domain.AuthenticatedUser, size int) ([]*domain.UserResponse, error)
	Random(ctx context.Context, caller domain.AuthenticatedUser, size int) ([]*domain.UserResponse, error)
	GetByID(ctx context.Context, caller domain.AuthenticatedUser, userID uuid.UUID) (*domain.UserResponse, error)
	GetByEmail(ctx context.Context, email string) (*domain.UserResponse, error)
}

// Handler handles user directory HTTP requests
type Handler struct {
	userService UserService
}

// NewHandler creates a new user handler
func NewHandler(userService UserService) *Handler {
	return &Handler{
		userService: userService,
	}
}

// GetMe returns the current user's profile
// GET /v1/users/me
func (h *Handler) GetMe(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	profile, err := h.userService.Me(c.Request.Context(), current)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

// CompleteAccount fills in the profile from a multipart form
// POST /v1/users/me/complete
func (h *Handler) CompleteAccount(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	// Leave room for the other form fields on top of the image
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxProfileImageSize+1<<20)

	input := &user.CompleteAccountInput{
		FullName:  c.PostForm("full_name"),
		BirthDate: c.PostForm("birth_date"),
	}
	if phone, ok := c.GetPostForm("phone"); ok {
		input.Phone = &phone
	}

	fileHeader, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := fileHeader.Open()
		if err != nil {
			response.ValidationError(c, "Failed to read profile image")
			return
		}
		defer file.Close()

		input.Image = &user.ImageUpload{
			Reader:      file,
			Size:        fileHeader.Size,
			ContentType: fileHeader.Header.Get("Content-Type"),
		}
	case err != http.ErrMissingFile:
		response.ValidationError(c, "Invalid multipart form")
		return
	}

	profile, err := h.userService.CompleteAccount(c.Request.Context(), current, input)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

// Search finds users by name, phone or email
// GET /v1/users/search?query=&size=
func (h *Handler) Search(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	users, err := h.userService.Search(c.Request.Context(), current, c.Query("query"), querySize(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}

// Suggested returns recent call partners
// GET /v1/users/suggested?size=
func (h *Handler) Suggested(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	users, err := h.userService.Suggested(c.Request.Context(), current, querySize(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}

// Random returns a random sample of users
// GET /v1/users/random?size=
func (h *Handler) Random(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	users, err := h.userService.Random(c.Request.Context(), current, querySize(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}

// GetByEmail looks a user up by exact email
// GET /v1/users/by-email?email=
func (h *Handler) GetByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.ValidationError(c, "email is required")
		return
	}

	u, err := h.userService.GetByEmail(c.Request.Context(), email)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, u)
}

// GetByID returns another user's public profile
// GET /v1/users/:id
func (h *Handler) GetByID(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	u, err := h.userService.GetByID(c.Request.Context(), current, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, u)
}

// querySize returns 0 (service default) for a missing or malformed size
func querySize(c *gin.Context) int {
	size, err := strconv.Atoi(c.Query("size"))
	if err != nil {
		return 0
	}
	return size
}
