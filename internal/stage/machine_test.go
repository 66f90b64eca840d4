package stage

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convene-app/backend/internal/groups"
	"github.com/convene-app/backend/internal/models"
)

func testStages() []models.StageDefinition {
	return []models.StageDefinition{
		{
			Name:    "connect",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{ID: "c1", Name: "warm-up", GroupSize: groups.TokenPair, DurationSeconds: 120},
				{ID: "c2", Name: "dialogue", GroupSize: groups.TokenTriad, DurationSeconds: 300},
			},
		},
		{
			Name:    "explore",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{ID: "e1", Name: "whole group", GroupSize: groups.TokenWholeGroup, DurationSeconds: 180},
			},
		},
	}
}

func testRoster(n int, withHost bool) []models.Participant {
	list := make([]models.Participant, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, models.Participant{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("participant-%d", i),
			IsHost: withHost && i == 0,
			Status: models.ParticipantActive,
		})
	}
	return list
}

func newTestMachine(t *testing.T, stages []models.StageDefinition, roster []models.Participant) *Machine {
	t.Helper()
	addr := func(sessionID, roomID uuid.UUID) string {
		return fmt.Sprintf("convene-%s-%s", sessionID, roomID)
	}
	m := NewMachine(uuid.New(), stages, addr, nil, nil, nil)
	t.Cleanup(m.Close)
	require.NoError(t, m.SetRoster(roster))
	return m
}

func TestMachine_StartEntersFirstSubstage(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(7, true))
	require.NoError(t, m.Start())

	state := m.State()
	require.Equal(t, models.StatusActive, state.Status)
	require.Equal(t, 0, state.CurrentStageIndex)
	require.Equal(t, 0, state.CurrentSubstageIndex)
	require.NotNil(t, state.StartedAt)
	require.Equal(t, 120, m.Timer().Remaining())
	require.NotEmpty(t, m.Rooms())
}

// From preparing, a finite number of advances always reaches completed:
// [A(sub1,sub2), B(sub1)] completes after exactly three advances.
func TestMachine_AdvancesTerminate(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(7, true))
	require.NoError(t, m.Start())

	require.NoError(t, m.AdvanceSubstage())
	require.Equal(t, 1, m.State().CurrentSubstageIndex)

	require.NoError(t, m.AdvanceSubstage())
	require.Equal(t, 1, m.State().CurrentStageIndex)
	require.Equal(t, 0, m.State().CurrentSubstageIndex)

	require.NoError(t, m.AdvanceSubstage())
	state := m.State()
	require.Equal(t, models.StatusCompleted, state.Status)
	require.NotNil(t, state.CompletedAt)
	require.Empty(t, m.Rooms(), "ending clears assignments")
	require.Empty(t, m.Assignments())
}

func TestMachine_InvalidTransitionsAreNoOps(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(4, true))

	err := m.Pause()
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, models.StatusPreparing, invalid.From)
	require.Equal(t, "pause", invalid.Attempted)
	require.Equal(t, models.StatusPreparing, m.State().Status)

	require.Error(t, m.AdvanceSubstage())
	require.Error(t, m.Resume())
	require.Error(t, m.End())

	require.NoError(t, m.Start())
	require.NoError(t, m.End())

	// completed is terminal
	require.Error(t, m.Start())
	require.Error(t, m.Resume())
	require.Error(t, m.AdvanceStage())
	require.Error(t, m.SetRoster(testRoster(3, true)))
}

func TestMachine_PauseResumeKeepsRemainingTime(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(5, true))
	require.NoError(t, m.Start())

	m.Timer().SetRemaining(42)
	require.NoError(t, m.Pause())
	require.Equal(t, models.StatusPaused, m.State().Status)
	require.NotNil(t, m.State().PausedAt)
	require.NotEmpty(t, m.Rooms(), "pause keeps current rooms")

	require.NoError(t, m.Resume())
	require.Equal(t, models.StatusActive, m.State().Status)
	require.Nil(t, m.State().PausedAt)
	require.Equal(t, 42, m.Timer().Remaining())
}

func TestMachine_DisabledStagesSkipped(t *testing.T) {
	stages := testStages()
	stages[1].Enabled = false
	stages = append(stages, models.StageDefinition{
		Name:    "reflect",
		Enabled: true,
		Substages: []models.SubstageDefinition{
			{ID: "r1", Name: "closing", GroupSize: groups.TokenWholeGroup, DurationSeconds: 60},
		},
	})
	m := newTestMachine(t, stages, testRoster(6, true))
	require.NoError(t, m.Start())

	require.NoError(t, m.AdvanceStage())
	require.Equal(t, 2, m.State().CurrentStageIndex, "disabled stage skipped")
}

func TestMachine_HostExcludedUntilWholeGroup(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(7, true))
	roster := m.Roster()
	host := roster[0]
	require.NoError(t, m.Start())

	for _, room := range m.Rooms() {
		if room.Type != models.RoomTypeMain {
			require.False(t, room.Contains(host.ID))
		}
	}

	// advance into the whole-group stage
	require.NoError(t, m.AdvanceStage())
	rooms := m.Rooms()
	require.Len(t, rooms, 1)
	require.Equal(t, models.RoomTypeMain, rooms[0].Type)
	require.Len(t, rooms[0].ParticipantIDs, 7)
	require.True(t, rooms[0].Contains(host.ID))
}

func TestMachine_PreserveKeepsRoomsAcrossSubstages(t *testing.T) {
	stages := []models.StageDefinition{
		{
			Name:    "explore",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{ID: "d", Name: "dialogue", GroupSize: groups.TokenTriad, DurationSeconds: 300},
				{ID: "s", Name: "summary", GroupSize: groups.TokenTriad, DurationSeconds: 120, PreserveGroups: true},
			},
		},
	}
	m := newTestMachine(t, stages, testRoster(7, true))
	require.NoError(t, m.Start())
	before := m.Rooms()

	require.NoError(t, m.AdvanceSubstage())
	require.Equal(t, before, m.Rooms(), "summary stays in the dialogue rooms")
	require.Equal(t, 120, m.Timer().Remaining(), "timer still rearmed")
}

func TestMachine_PreviousSubstageRegenerates(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(9, true))
	require.NoError(t, m.Start())
	require.NoError(t, m.AdvanceSubstage())

	require.NoError(t, m.GoToPreviousSubstage())
	state := m.State()
	require.Equal(t, 0, state.CurrentSubstageIndex)
	require.Equal(t, 120, m.Timer().Remaining())

	// backward past the beginning is invalid
	err := m.GoToPreviousSubstage()
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestMachine_RosterChangeRepartitionsCurrentSubstage(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(6, true))
	require.NoError(t, m.Start())
	m.Timer().SetRemaining(77)

	grown := append(m.Roster(), testRoster(4, false)...)
	require.NoError(t, m.SetRoster(grown))

	assignments := m.Assignments()
	require.Len(t, assignments, 10, "every active participant assigned")
	require.Equal(t, 77, m.Timer().Remaining(), "repartition does not reset the timer")
}

func TestMachine_LargeRosterUsesOrganizer(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(501, true))
	require.NoError(t, m.Start())

	org := m.Organization()
	require.NotNil(t, org)
	require.Equal(t, 125, org.TotalRooms)
	require.Equal(t, 25, org.TotalZones)
	require.Len(t, org.Regions, 5)

	// whole-group substage drops back to a single flat room
	require.NoError(t, m.AdvanceStage())
	require.Nil(t, m.Organization())
	require.Len(t, m.Rooms(), 1)
}

func TestMachine_AssignmentsCoverRosterOnce(t *testing.T) {
	m := newTestMachine(t, testStages(), testRoster(11, true))
	require.NoError(t, m.Start())

	seen := make(map[uuid.UUID]int)
	for _, a := range m.Assignments() {
		require.NotEmpty(t, a.RoomAddress)
		seen[a.ParticipantID]++
	}
	require.Len(t, seen, 11)
	for _, count := range seen {
		require.Equal(t, 1, count)
	}
}

func TestMachine_UnknownTokenBlocksStart(t *testing.T) {
	stages := []models.StageDefinition{
		{
			Name:    "connect",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{ID: "x", Name: "bad", GroupSize: "dozen", DurationSeconds: 60},
			},
		},
	}
	require.Error(t, ValidateStages(stages))

	m := newTestMachine(t, stages, testRoster(4, true))
	err := m.Start()
	require.ErrorIs(t, err, groups.ErrUnknownGroupSize)
	require.Equal(t, models.StatusPreparing, m.State().Status, "failed start leaves preparing")
}

func TestMachine_ChangeCallbackObservesEveryEntry(t *testing.T) {
	var calls []models.SessionState
	addr := func(sessionID, roomID uuid.UUID) string { return roomID.String() }
	onChange := func(state models.SessionState, rooms []models.Room, assignments []models.RoomAssignment) {
		calls = append(calls, state)
	}
	m := NewMachine(uuid.New(), testStages(), addr, onChange, nil, nil)
	t.Cleanup(m.Close)
	require.NoError(t, m.SetRoster(testRoster(5, true)))

	require.NoError(t, m.Start())
	require.NoError(t, m.AdvanceSubstage())
	require.NoError(t, m.End())

	require.Len(t, calls, 3)
	require.Equal(t, models.StatusActive, calls[0].Status)
	require.Equal(t, 1, calls[1].CurrentSubstageIndex)
	require.Equal(t, models.StatusCompleted, calls[2].Status)
}
