package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
	"github.com/aura-stage/backend/pkg/response"
)

func (s *Server) health(c *gin.Context) {
	response.OK(c, gin.H{
		"status":      "ok",
		"events":      len(s.Store.EventIDs()),
		"connections": s.Hub.ClientCount(),
	})
}

// stats serves GET /events/:id/stats.
func (s *Server) stats(c *gin.Context) {
	eventID, err := validation.EventID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var stats models.Stats
	err = s.Store.View(eventID, func(ev *store.Event) error {
		stats = ev.Stats()
		return nil
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// pollResults serves GET /events/:id/results from the archive.
func (s *Server) pollResults(c *gin.Context) {
	if s.results == nil {
		response.ServiceUnavailable(c, "results archive not configured")
		return
	}
	eventID, err := validation.EventID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	list, err := s.results.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		s.logger.Error("list poll results", zap.String("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to load results")
		return
	}
	if list == nil {
		list = []models.PollArchive{}
	}
	response.OK(c, list)
}
