// Package sessions is the orchestration layer: it owns the stage machine
// registry, persists sessions and rosters, publishes assignment snapshots,
// and fans live state out to connected clients.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/models"
	"github.com/convene-app/backend/internal/stage"
	"github.com/convene-app/backend/pkg/queue"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotLive   = errors.New("session is not running")
	ErrSessionCompleted = errors.New("session already completed")
	ErrHostExists       = errors.New("session already has a host")
)

const callbackTimeout = 5 * time.Second

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error
	AddParticipant(ctx context.Context, sessionID uuid.UUID, p *models.Participant) error
	SetParticipantStatus(ctx context.Context, sessionID, participantID uuid.UUID, status string) error
	GetParticipant(ctx context.Context, sessionID, participantID uuid.UUID) (*models.Participant, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	HasHost(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// SnapshotStore publishes and loads assignment snapshots.
type SnapshotStore interface {
	Publish(ctx context.Context, snap *models.Snapshot) error
	Load(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error)
}

// EventSink records state machine transitions out-of-band.
type EventSink interface {
	EnqueueSessionEvent(ctx context.Context, payload queue.SessionEventPayload) error
}

// Broadcaster pushes live events to connected clients across instances.
type Broadcaster interface {
	BroadcastToSessionAndPublish(sessionID uuid.UUID, event string, payload interface{})
}

// Service coordinates sessions end to end. All stage machines live here;
// websocket clients and other processes only ever see published snapshots.
type Service struct {
	store      Store
	registry   *stage.Registry
	snapshots  SnapshotStore
	events     EventSink
	hub        Broadcaster
	addressFor stage.AddressFunc
	logger     *zap.Logger
}

// NewService creates the session orchestration service.
func NewService(store Store, registry *stage.Registry, snapshots SnapshotStore, events EventSink, hub Broadcaster, addressFor stage.AddressFunc, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		registry:   registry,
		snapshots:  snapshots,
		events:     events,
		hub:        hub,
		addressFor: addressFor,
		logger:     logger,
	}
}

// CreateSession persists a new session. A nil stage list selects the
// default template; the configuration is validated before it is stored so
// a bad group-size token fails here rather than at start.
func (s *Service) CreateSession(ctx context.Context, title string, stages []models.StageDefinition) (*models.Session, error) {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	if err := stage.ValidateStages(stages); err != nil {
		return nil, err
	}
	session := &models.Session{
		Title:  title,
		Status: models.StatusPreparing,
		Stages: stages,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", session.ID.String()), zap.String("title", title))
	return session, nil
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns all sessions.
func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.List(ctx)
}

// Join adds a participant to the roster. Joining a live session
// repartitions the current substage immediately.
func (s *Service) Join(ctx context.Context, sessionID uuid.UUID, name string, isHost bool) (*models.Participant, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusCompleted {
		return nil, ErrSessionCompleted
	}
	if isHost {
		has, err := s.store.HasHost(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, ErrHostExists
		}
	}
	p := &models.Participant{Name: name, IsHost: isHost, Status: models.ParticipantActive}
	if err := s.store.AddParticipant(ctx, sessionID, p); err != nil {
		return nil, err
	}
	if err := s.refreshRoster(ctx, sessionID); err != nil {
		return nil, err
	}
	s.logger.Info("participant joined",
		zap.String("session_id", sessionID.String()),
		zap.String("participant_id", p.ID.String()),
		zap.Bool("is_host", isHost))
	return p, nil
}

// Leave marks a participant as gone and repartitions if live.
func (s *Service) Leave(ctx context.Context, sessionID, participantID uuid.UUID) error {
	if err := s.store.SetParticipantStatus(ctx, sessionID, participantID, models.ParticipantLeft); err != nil {
		return err
	}
	return s.refreshRoster(ctx, sessionID)
}

// Participant resolves one roster member; used to authenticate sockets.
func (s *Service) Participant(ctx context.Context, sessionID, participantID uuid.UUID) (*models.Participant, error) {
	return s.store.GetParticipant(ctx, sessionID, participantID)
}

// Participants returns the session roster.
func (s *Service) Participants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return s.store.ListParticipants(ctx, sessionID)
}

// Start builds the stage machine for a session and moves it to active.
func (s *Service) Start(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	roster, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return err
	}

	m, ok := s.registry.Get(sessionID)
	if !ok {
		m = s.buildMachine(sessionID, session.Stages)
		s.registry.Put(sessionID, m)
	}
	if err := m.SetRoster(roster); err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "session_started", m)
	return nil
}

// Pause freezes the live session.
func (s *Service) Pause(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.Pause(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "session_paused", m)
	return nil
}

// Resume continues a paused session.
func (s *Service) Resume(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.Resume(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "session_resumed", m)
	return nil
}

// AdvanceSubstage moves the session forward one substage.
func (s *Service) AdvanceSubstage(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.AdvanceSubstage(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "substage_advanced", m)
	return nil
}

// AdvanceStage skips to the next enabled stage.
func (s *Service) AdvanceStage(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.AdvanceStage(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "stage_advanced", m)
	return nil
}

// PreviousSubstage navigates backward one substage.
func (s *Service) PreviousSubstage(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.GoToPreviousSubstage(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "substage_rewound", m)
	return nil
}

// End completes the session and releases its machine. The terminal
// snapshot survives in the store, so late readers still resolve.
func (s *Service) End(ctx context.Context, sessionID uuid.UUID) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if err := m.End(); err != nil {
		return err
	}
	s.recordEvent(sessionID, "session_completed", m)
	s.registry.Remove(sessionID)
	return nil
}

// AdjustTimer extends or overwrites the countdown of a live session.
// Advisory only: expiry never advances the session.
func (s *Service) AdjustTimer(sessionID uuid.UUID, addSeconds, setSeconds *int) error {
	m, err := s.machine(sessionID)
	if err != nil {
		return err
	}
	if setSeconds != nil {
		m.Timer().SetRemaining(*setSeconds)
	}
	if addSeconds != nil {
		m.Timer().AddSeconds(*addSeconds)
	}
	s.hub.BroadcastToSessionAndPublish(sessionID, "timer_tick", map[string]interface{}{
		"remaining": m.Timer().Remaining(),
		"expired":   m.Timer().Expired(),
	})
	return nil
}

// Assignments returns the current snapshot for a session: the live
// machine when this instance owns it, otherwise the stored snapshot.
func (s *Service) Assignments(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error) {
	if m, ok := s.registry.Get(sessionID); ok {
		return s.snapshotOf(sessionID, m), nil
	}
	snap, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrSessionNotLive
	}
	return snap, nil
}

// Organization returns the large-scale region/zone tree, or nil in flat mode.
func (s *Service) Organization(sessionID uuid.UUID) (*models.OrganizationStructure, error) {
	m, err := s.machine(sessionID)
	if err != nil {
		return nil, err
	}
	return m.Organization(), nil
}

func (s *Service) machine(sessionID uuid.UUID) (*stage.Machine, error) {
	m, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotLive
	}
	return m, nil
}

// refreshRoster pushes the persisted roster into the live machine, if any.
func (s *Service) refreshRoster(ctx context.Context, sessionID uuid.UUID) error {
	m, ok := s.registry.Get(sessionID)
	if !ok {
		return nil
	}
	roster, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.SetRoster(roster); err != nil {
		return err
	}
	s.recordEvent(sessionID, "roster_changed", m)
	return nil
}

// buildMachine wires a stage machine's callbacks: every change publishes a
// snapshot, persists the status, and broadcasts to clients; every tick
// streams the countdown.
func (s *Service) buildMachine(sessionID uuid.UUID, stages []models.StageDefinition) *stage.Machine {
	var m *stage.Machine
	wasExpired := false

	onChange := func(state models.SessionState, rooms []models.Room, assignments []models.RoomAssignment) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()

		snap := &models.Snapshot{
			SessionID:            sessionID,
			Status:               state.Status,
			CurrentStageIndex:    state.CurrentStageIndex,
			CurrentSubstageIndex: state.CurrentSubstageIndex,
			Rooms:                rooms,
			Assignments:          assignments,
			Participants:         m.Roster(),
		}
		if err := s.snapshots.Publish(ctx, snap); err != nil {
			s.logger.Error("snapshot publish failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		if err := s.store.UpdateStatus(ctx, sessionID, state.Status); err != nil {
			s.logger.Warn("status persist failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		s.hub.BroadcastToSessionAndPublish(sessionID, "session_state", state)
	}

	onTick := func(remaining int, expired bool) {
		s.hub.BroadcastToSessionAndPublish(sessionID, "timer_tick", map[string]interface{}{
			"remaining": remaining,
			"expired":   expired,
		})
		if expired && !wasExpired {
			s.hub.BroadcastToSessionAndPublish(sessionID, "timer_expired", map[string]interface{}{
				"remaining": 0,
			})
		}
		wasExpired = expired
	}

	m = stage.NewMachine(sessionID, stages, s.addressFor, onChange, onTick, s.logger)
	return m
}

func (s *Service) snapshotOf(sessionID uuid.UUID, m *stage.Machine) *models.Snapshot {
	state := m.State()
	return &models.Snapshot{
		SessionID:            sessionID,
		Status:               state.Status,
		CurrentStageIndex:    state.CurrentStageIndex,
		CurrentSubstageIndex: state.CurrentSubstageIndex,
		Rooms:                m.Rooms(),
		Assignments:          m.Assignments(),
		Participants:         m.Roster(),
	}
}

func (s *Service) recordEvent(sessionID uuid.UUID, event string, m *stage.Machine) {
	if s.events == nil {
		return
	}
	state := m.State()
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	err := s.events.EnqueueSessionEvent(ctx, queue.SessionEventPayload{
		SessionID:     sessionID,
		Event:         event,
		Status:        string(state.Status),
		StageIndex:    state.CurrentStageIndex,
		SubstageIndex: state.CurrentSubstageIndex,
		RoomCount:     len(m.Rooms()),
		Participants:  len(m.Roster()),
		OccurredAt:    time.Now(),
	})
	if err != nil {
		s.logger.Warn("event enqueue failed",
			zap.String("session_id", sessionID.String()), zap.String("event", event), zap.Error(err))
	}
}
