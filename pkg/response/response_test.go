package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "talkbridge-backend/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")
	fn(c)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestFromError_AppError(t *testing.T) {
	w, body := serve(func(c *gin.Context) {
		FromError(c, apperrors.UserBusyError())
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, string(apperrors.ErrCodeUserBusy), body.Error.Code)
	assert.Equal(t, "req-1", body.Meta.RequestID)
}

func TestFromError_HidesInternalCause(t *testing.T) {
	w, body := serve(func(c *gin.Context) {
		FromError(c, apperrors.DatabaseError(errors.New("pq: relation users does not exist")))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, string(apperrors.ErrCodeInternal), body.Error.Code)
	assert.NotContains(t, w.Body.String(), "relation users")
}

func TestFromError_UnknownError(t *testing.T) {
	w, body := serve(func(c *gin.Context) {
		FromError(c, errors.New("boom"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Internal server error", body.Error.Message)
}

func TestSuccess(t *testing.T) {
	w, body := serve(func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"call_id": "abc"})
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	assert.Equal(t, map[string]interface{}{"call_id": "abc"}, body.Data)
}
