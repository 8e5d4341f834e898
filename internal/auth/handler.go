package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/middleware"
	"github.com/aura-stage/backend/internal/validation"
	"github.com/aura-stage/backend/pkg/response"
	"github.com/aura-stage/backend/pkg/utils"
)

// MinPasswordLength is the shortest accepted A/V technician password.
const MinPasswordLength = 8

// PasswordWriter persists A/V technician password hashes.
type PasswordWriter interface {
	SetAVTechPassword(ctx context.Context, eventID, hash, updatedBy string) error
}

// Handler serves credential management endpoints.
type Handler struct {
	repo   PasswordWriter
	logger *zap.Logger
}

// NewHandler creates an auth handler. A nil repo makes every write fail with 503.
func NewHandler(repo PasswordWriter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// SetPasswordRequest is the body for PUT /events/:id/avtech-password.
type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// SetAVTechPassword stores a new bcrypt hash for the event.
func (h *Handler) SetAVTechPassword(c *gin.Context) {
	if h.repo == nil {
		response.ServiceUnavailable(c, "password storage not configured")
		return
	}
	eventID, err := validation.EventID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(strings.TrimSpace(req.Password)) < MinPasswordLength {
		response.BadRequest(c, "password must be at least 8 characters")
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	userID, _ := c.Get(middleware.ContextUserID)
	updatedBy, _ := userID.(string)
	if err := h.repo.SetAVTechPassword(c.Request.Context(), eventID, hash, updatedBy); err != nil {
		h.logger.Error("store avtech password", zap.String("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to store password")
		return
	}
	h.logger.Info("avtech password updated", zap.String("event_id", eventID), zap.String("by", updatedBy))
	response.OK(c, gin.H{"eventId": eventID})
}
