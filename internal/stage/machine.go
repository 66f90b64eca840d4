// Package stage implements the per-session state machine that walks an
// ordered stage/substage list, runs the advisory countdown timer, and
// regenerates room assignments on every substage entry.
package stage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/groups"
	"github.com/convene-app/backend/internal/models"
)

// AddressFunc derives the video-provider address for a room.
type AddressFunc func(sessionID, roomID uuid.UUID) string

// ChangeFunc is invoked after every state or room change with read-only
// copies of the machine's output.
type ChangeFunc func(state models.SessionState, rooms []models.Room, assignments []models.RoomAssignment)

// InvalidTransitionError reports a state machine call that is not legal in
// the current status. Always a no-op, never a crash.
type InvalidTransitionError struct {
	From      models.SessionStatus
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s while %s", e.Attempted, e.From)
}

// ValidateStages checks a stage configuration at the boundary: every
// substage must carry a known group-size token and a positive duration.
func ValidateStages(stages []models.StageDefinition) error {
	for _, st := range stages {
		for _, sub := range st.Substages {
			if _, err := groups.Capacity(sub.GroupSize); err != nil {
				return fmt.Errorf("stage %q substage %q: %w", st.Name, sub.Name, err)
			}
			if sub.DurationSeconds <= 0 {
				return fmt.Errorf("stage %q substage %q: duration must be positive", st.Name, sub.Name)
			}
		}
	}
	return nil
}

// Machine owns one session's state. It lives only in the server process;
// all other observers see snapshots published through the synchronizer.
type Machine struct {
	mu          sync.Mutex
	sessionID   uuid.UUID
	stages      []models.StageDefinition
	roster      []models.Participant
	state       models.SessionState
	rooms       []models.Room
	assignments []models.RoomAssignment
	org         *models.OrganizationStructure
	timer       *Timer
	addressFor  AddressFunc
	onChange    ChangeFunc
	logger      *zap.Logger
}

// NewMachine creates a stage machine in the preparing state.
func NewMachine(sessionID uuid.UUID, stages []models.StageDefinition, addressFor AddressFunc, onChange ChangeFunc, onTick TickFunc, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		sessionID:  sessionID,
		stages:     stages,
		state:      models.SessionState{SessionID: sessionID, Status: models.StatusPreparing},
		timer:      NewTimer(onTick, logger),
		addressFor: addressFor,
		onChange:   onChange,
		logger:     logger,
	}
}

// Start moves preparing -> active, enters the first enabled stage's first
// substage, and arms the timer. Configuration errors (unknown group-size
// token) surface here and leave the machine in preparing.
func (m *Machine) Start() error {
	m.mu.Lock()
	if m.state.Status != models.StatusPreparing {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "start"}
	}
	now := time.Now()
	first := m.nextEnabledStageLocked(-1)
	if first < 0 {
		notify := m.endLocked(now)
		m.mu.Unlock()
		notify()
		return nil
	}
	m.state.Status = models.StatusActive
	m.state.StartedAt = &now
	m.state.CurrentStageIndex = first
	m.state.CurrentSubstageIndex = 0
	m.state.StageStartedAt = now
	if err := m.enterSubstageLocked(now, true); err != nil {
		m.state = models.SessionState{SessionID: m.sessionID, Status: models.StatusPreparing}
		m.mu.Unlock()
		return err
	}
	notify := m.changeLocked()
	m.mu.Unlock()

	m.timer.Start()
	notify()
	m.logger.Info("session started", zap.String("session_id", m.sessionID.String()))
	return nil
}

// AdvanceSubstage moves to the next substage in the current stage, or to
// the next stage when the current substage was the last.
func (m *Machine) AdvanceSubstage() error {
	m.mu.Lock()
	if m.state.Status != models.StatusActive {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "advance_substage"}
	}
	now := time.Now()
	cur := m.stages[m.state.CurrentStageIndex]
	var notify func()
	var err error
	if m.state.CurrentSubstageIndex+1 < len(cur.Substages) {
		m.state.CurrentSubstageIndex++
		if err = m.enterSubstageLocked(now, true); err == nil {
			notify = m.changeLocked()
		}
	} else {
		notify, err = m.advanceStageLocked(now)
	}
	ended := m.state.Status == models.StatusCompleted
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if ended {
		m.timer.Stop()
	}
	notify()
	return nil
}

// AdvanceStage moves to the next enabled stage's first substage, or ends
// the session when no stages remain.
func (m *Machine) AdvanceStage() error {
	m.mu.Lock()
	if m.state.Status != models.StatusActive {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "advance_stage"}
	}
	notify, err := m.advanceStageLocked(time.Now())
	ended := m.state.Status == models.StatusCompleted
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if ended {
		m.timer.Stop()
	}
	notify()
	return nil
}

// GoToPreviousSubstage navigates backward, regenerating rooms for the
// substage being returned to. Partitioning is randomized, so the prior
// grouping is not restored.
func (m *Machine) GoToPreviousSubstage() error {
	m.mu.Lock()
	if m.state.Status != models.StatusActive {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "previous_substage"}
	}
	now := time.Now()
	if m.state.CurrentSubstageIndex > 0 {
		m.state.CurrentSubstageIndex--
	} else {
		prev := m.prevEnabledStageLocked(m.state.CurrentStageIndex)
		if prev < 0 {
			m.mu.Unlock()
			return &InvalidTransitionError{From: models.StatusActive, Attempted: "previous_substage"}
		}
		m.state.CurrentStageIndex = prev
		m.state.CurrentSubstageIndex = len(m.stages[prev].Substages) - 1
		m.state.StageStartedAt = now
	}
	if err := m.enterSubstageLocked(now, false); err != nil {
		m.mu.Unlock()
		return err
	}
	notify := m.changeLocked()
	m.mu.Unlock()
	notify()
	return nil
}

// Pause freezes the timer. Participants remain in their current rooms.
func (m *Machine) Pause() error {
	m.mu.Lock()
	if m.state.Status != models.StatusActive {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "pause"}
	}
	now := time.Now()
	m.state.Status = models.StatusPaused
	m.state.PausedAt = &now
	notify := m.changeLocked()
	m.mu.Unlock()

	m.timer.Pause()
	notify()
	return nil
}

// Resume continues from the remaining time; the timer is not restarted.
func (m *Machine) Resume() error {
	m.mu.Lock()
	if m.state.Status != models.StatusPaused {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "resume"}
	}
	m.state.Status = models.StatusActive
	m.state.PausedAt = nil
	notify := m.changeLocked()
	m.mu.Unlock()

	m.timer.Resume()
	notify()
	return nil
}

// End completes the session and clears assignments. Terminal.
func (m *Machine) End() error {
	m.mu.Lock()
	if m.state.Status != models.StatusActive && m.state.Status != models.StatusPaused {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "end"}
	}
	notify := m.endLocked(time.Now())
	m.mu.Unlock()

	m.timer.Stop()
	notify()
	m.logger.Info("session completed", zap.String("session_id", m.sessionID.String()))
	return nil
}

// SetRoster replaces the roster. While active, the current substage is
// repartitioned in place (full reshuffle); the timer keeps running.
func (m *Machine) SetRoster(participants []models.Participant) error {
	m.mu.Lock()
	if m.state.Status == models.StatusCompleted {
		from := m.state.Status
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, Attempted: "update_roster"}
	}
	m.roster = participants
	var notify func()
	if m.state.Status == models.StatusActive {
		if err := m.partitionLocked(false); err != nil {
			m.mu.Unlock()
			return err
		}
		notify = m.changeLocked()
	}
	m.mu.Unlock()
	if notify != nil {
		notify()
	}
	return nil
}

// Timer exposes the advisory countdown for ad-hoc host adjustments.
func (m *Machine) Timer() *Timer { return m.timer }

// State returns a copy of the current session state.
func (m *Machine) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Rooms returns the current rooms.
func (m *Machine) Rooms() []models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Room(nil), m.rooms...)
}

// Assignments returns the current participant -> room map.
func (m *Machine) Assignments() []models.RoomAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RoomAssignment(nil), m.assignments...)
}

// Roster returns the current roster.
func (m *Machine) Roster() []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Participant(nil), m.roster...)
}

// Organization returns the large-scale tree, or nil in flat mode.
func (m *Machine) Organization() *models.OrganizationStructure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.org
}

// Close releases the timer goroutine without changing session state.
func (m *Machine) Close() {
	m.timer.Stop()
}

func (m *Machine) advanceStageLocked(now time.Time) (func(), error) {
	next := m.nextEnabledStageLocked(m.state.CurrentStageIndex)
	if next < 0 {
		return m.endLocked(now), nil
	}
	m.state.CurrentStageIndex = next
	m.state.CurrentSubstageIndex = 0
	m.state.StageStartedAt = now
	if err := m.enterSubstageLocked(now, true); err != nil {
		return nil, err
	}
	return m.changeLocked(), nil
}

func (m *Machine) endLocked(now time.Time) func() {
	m.state.Status = models.StatusCompleted
	m.state.CompletedAt = &now
	m.state.PausedAt = nil
	m.rooms = nil
	m.assignments = nil
	m.org = nil
	return m.changeLocked()
}

// enterSubstageLocked stamps the entry time, regenerates (or preserves)
// rooms, and rearms the timer to the substage duration.
func (m *Machine) enterSubstageLocked(now time.Time, preserveAllowed bool) error {
	sub := m.stages[m.state.CurrentStageIndex].Substages[m.state.CurrentSubstageIndex]
	preserve := preserveAllowed && sub.PreserveGroups
	if err := m.partitionLocked(preserve); err != nil {
		return err
	}
	m.state.SubstageStartedAt = now
	m.timer.Reset(sub.DurationSeconds)
	return nil
}

func (m *Machine) partitionLocked(preserve bool) error {
	sub := m.stages[m.state.CurrentStageIndex].Substages[m.state.CurrentSubstageIndex]
	roster := activeParticipants(m.roster)

	if preserve && len(m.rooms) > 0 {
		return nil
	}

	capacity, err := groups.Capacity(sub.GroupSize)
	if err != nil {
		return err
	}

	var rooms []models.Room
	host, others := splitHost(roster)
	if capacity != groups.CapacityAll && len(others) > groups.LargeScaleThreshold {
		org, err := groups.Organize(m.sessionID, others)
		if err != nil {
			return err
		}
		rooms = org.AllRooms()
		if host != nil {
			rooms = append(rooms, models.Room{
				ID:             uuid.New(),
				Name:           groups.MainRoomName,
				Type:           models.RoomTypeMain,
				ParticipantIDs: []uuid.UUID{host.ID},
				CreatedAt:      time.Now(),
			})
		}
		m.org = org
	} else {
		rooms, err = groups.Partition(roster, sub.GroupSize, nil, false)
		if err != nil {
			return err
		}
		m.org = nil
	}

	now := time.Now()
	assignments := make([]models.RoomAssignment, 0, len(roster))
	for _, room := range rooms {
		address := ""
		if m.addressFor != nil {
			address = m.addressFor(m.sessionID, room.ID)
		}
		for _, pid := range room.ParticipantIDs {
			assignments = append(assignments, models.RoomAssignment{
				ParticipantID: pid,
				RoomID:        room.ID,
				RoomAddress:   address,
				AssignedAt:    now,
			})
		}
	}
	m.rooms = rooms
	m.assignments = assignments
	return nil
}

func (m *Machine) changeLocked() func() {
	state := m.state
	rooms := append([]models.Room(nil), m.rooms...)
	assignments := append([]models.RoomAssignment(nil), m.assignments...)
	onChange := m.onChange
	return func() {
		if onChange != nil {
			onChange(state, rooms, assignments)
		}
	}
}

// nextEnabledStageLocked returns the index of the first enabled stage after
// from, or -1 when none remain.
func (m *Machine) nextEnabledStageLocked(from int) int {
	for i := from + 1; i < len(m.stages); i++ {
		if m.stages[i].Enabled && len(m.stages[i].Substages) > 0 {
			return i
		}
	}
	return -1
}

func (m *Machine) prevEnabledStageLocked(from int) int {
	for i := from - 1; i >= 0; i-- {
		if m.stages[i].Enabled && len(m.stages[i].Substages) > 0 {
			return i
		}
	}
	return -1
}

func activeParticipants(roster []models.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(roster))
	for _, p := range roster {
		if p.Status == "" || p.Status == models.ParticipantActive {
			out = append(out, p)
		}
	}
	return out
}

func splitHost(roster []models.Participant) (*models.Participant, []models.Participant) {
	var host *models.Participant
	others := make([]models.Participant, 0, len(roster))
	for i := range roster {
		if roster[i].IsHost {
			host = &roster[i]
			continue
		}
		others = append(others, roster[i])
	}
	return host, others
}
