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

	"github.com/aura-stage/backend/internal/apperror"
)

func TestErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.Validation("eventId", "required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperror.Unauthorized("no"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperror.NotFound("event", "x"), http.StatusNotFound, "NOT_FOUND"},
		{apperror.AlreadyVoted("p"), http.StatusConflict, "ALREADY_VOTED"},
		{apperror.RateLimited("vote", 3), http.StatusTooManyRequests, "RATE_LIMITED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Code)
	}
}
