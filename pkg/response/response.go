package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aura-stage/backend/internal/apperror"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps a classified error to its HTTP status.
func Error(c *gin.Context, err error) {
	e := apperror.From(err)
	c.JSON(statusOf(e), Body{Success: false, Error: e.Message, Code: string(e.Kind)})
}

func statusOf(e *apperror.Error) int {
	switch {
	case errors.Is(e, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(e, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(e, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(e, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(e, apperror.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
