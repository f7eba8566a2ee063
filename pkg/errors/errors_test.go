package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAppError_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("accept call: %w", UserBusyError())

	appErr := GetAppError(err)
	assert.Equal(t, ErrCodeUserBusy, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)
	assert.True(t, HasCode(err, ErrCodeUserBusy))
	assert.True(t, IsAppError(err))
}

func TestGetAppError_PlainErrorBecomesInternal(t *testing.T) {
	cause := stderrors.New("connection reset")

	appErr := GetAppError(cause)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.NotContains(t, appErr.Message, "connection reset")
	assert.ErrorIs(t, appErr, cause)
	assert.False(t, IsAppError(cause))
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	assert.ErrorIs(t, CallNotFoundError(), CallNotFoundError())
	assert.NotErrorIs(t, CallNotFoundError(), MeetingNotFoundError())
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{UnauthorizedError("no"), http.StatusUnauthorized},
		{InvalidTokenError("no"), http.StatusUnauthorized},
		{ForbiddenError("no"), http.StatusForbidden},
		{NotFoundError("Thing"), http.StatusNotFound},
		{ConflictError("dup"), http.StatusConflict},
		{IllegalStateError("terminal"), http.StatusConflict},
		{RateLimitExceededError(), http.StatusTooManyRequests},
		{DatabaseError(stderrors.New("x")), http.StatusInternalServerError},
		{ServiceUnavailableError("bus down"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
		})
	}
}
