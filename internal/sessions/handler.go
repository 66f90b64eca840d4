package sessions

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convene-app/backend/internal/groups"
	"github.com/convene-app/backend/internal/models"
	"github.com/convene-app/backend/internal/stage"
	"github.com/convene-app/backend/internal/video"
	"github.com/convene-app/backend/pkg/response"
)

// Handler exposes the host control surface and read endpoints over HTTP.
type Handler struct {
	svc    *Service
	tokens *video.TokenService
}

// NewHandler creates a session handler.
func NewHandler(svc *Service, tokens *video.TokenService) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

type createSessionRequest struct {
	Title  string                   `json:"title" binding:"required"`
	Stages []models.StageDefinition `json:"stages"`
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title is required")
		return
	}
	session, err := h.svc.CreateSession(c.Request.Context(), req.Title, req.Stages)
	if err != nil {
		if errors.Is(err, groups.ErrUnknownGroupSize) {
			response.BadRequest(c, err.Error())
			return
		}
		h.writeError(c, err)
		return
	}
	response.Created(c, session)
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, session)
}

type joinRequest struct {
	Name   string `json:"name" binding:"required"`
	IsHost bool   `json:"is_host"`
}

// Join handles POST /sessions/:id/participants.
func (h *Handler) Join(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	p, err := h.svc.Join(c.Request.Context(), sessionID, req.Name, req.IsHost)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, p)
}

// Leave handles DELETE /sessions/:id/participants/:participant_id.
func (h *Handler) Leave(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	participantID, err := uuid.Parse(c.Param("participant_id"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return
	}
	if err := h.svc.Leave(c.Request.Context(), sessionID, participantID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// ListParticipants handles GET /sessions/:id/participants.
func (h *Handler) ListParticipants(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	list, err := h.svc.Participants(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, gin.H{"participants": list})
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.svc.Start)
}

// Pause handles POST /sessions/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.svc.Pause)
}

// Resume handles POST /sessions/:id/resume.
func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.svc.Resume)
}

// AdvanceSubstage handles POST /sessions/:id/advance-substage.
func (h *Handler) AdvanceSubstage(c *gin.Context) {
	h.transition(c, h.svc.AdvanceSubstage)
}

// AdvanceStage handles POST /sessions/:id/advance-stage.
func (h *Handler) AdvanceStage(c *gin.Context) {
	h.transition(c, h.svc.AdvanceStage)
}

// PreviousSubstage handles POST /sessions/:id/previous-substage.
func (h *Handler) PreviousSubstage(c *gin.Context) {
	h.transition(c, h.svc.PreviousSubstage)
}

// End handles POST /sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	h.transition(c, h.svc.End)
}

type timerRequest struct {
	AddSeconds *int `json:"add_seconds"`
	SetSeconds *int `json:"set_seconds"`
}

// AdjustTimer handles POST /sessions/:id/timer.
func (h *Handler) AdjustTimer(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req timerRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.AddSeconds == nil && req.SetSeconds == nil) {
		response.BadRequest(c, "add_seconds or set_seconds required")
		return
	}
	if err := h.svc.AdjustTimer(sessionID, req.AddSeconds, req.SetSeconds); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// GetAssignments handles GET /sessions/:id/assignments.
func (h *Handler) GetAssignments(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	snap, err := h.svc.Assignments(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, snap)
}

// GetOrganization handles GET /sessions/:id/organization.
func (h *Handler) GetOrganization(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	org, err := h.svc.Organization(sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if org == nil {
		response.NotFound(c, "session is not in large-scale mode")
		return
	}
	response.OK(c, org)
}

// GetRoomToken handles GET /sessions/:id/room-token?participant_id=...;
// it mints a provider join token for the participant's current room.
func (h *Handler) GetRoomToken(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	participantID, err := uuid.Parse(c.Query("participant_id"))
	if err != nil {
		response.BadRequest(c, "participant_id required")
		return
	}
	p, err := h.svc.Participant(c.Request.Context(), sessionID, participantID)
	if err != nil || p == nil {
		response.NotFound(c, "unknown participant")
		return
	}
	snap, err := h.svc.Assignments(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	assignment := snap.AssignmentFor(participantID)
	if assignment == nil {
		response.NotFound(c, "participant has no room assignment")
		return
	}
	token, err := h.tokens.Generate(sessionID, participantID, assignment.RoomAddress, p.Name)
	if err != nil {
		response.Internal(c, "failed to mint room token")
		return
	}
	response.OK(c, gin.H{
		"token":        token,
		"room_address": assignment.RoomAddress,
		"room_id":      assignment.RoomID,
	})
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid *stage.InvalidTransitionError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSessionNotLive),
		errors.Is(err, ErrSessionCompleted),
		errors.Is(err, ErrHostExists):
		response.Conflict(c, err.Error())
	case errors.As(err, &invalid):
		response.Conflict(c, err.Error())
	case errors.Is(err, groups.ErrUnknownGroupSize):
		response.BadRequest(c, err.Error())
	default:
		response.Internal(c, "internal error")
	}
}
