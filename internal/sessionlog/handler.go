package sessionlog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convene-app/backend/pkg/response"
)

// Handler serves the session transition log and post-session summary.
type Handler struct {
	repo *Repository
}

// NewHandler creates a session log handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// GetEvents handles GET /sessions/:id/events.
func (h *Handler) GetEvents(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, gin.H{"events": list})
}

// GetSummary handles GET /sessions/:id/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	summary, err := h.repo.GetSummary(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load summary")
		return
	}
	if summary == nil {
		response.NotFound(c, "summary not generated yet")
		return
	}
	response.OK(c, summary)
}
