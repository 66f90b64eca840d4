package roomjoin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convene-app/backend/internal/models"
)

type fakeTransport struct {
	mu      sync.Mutex
	joins   []string
	leaves  int
	joinErr map[string][]error // popped per JoinRoom call to that address
}

func (f *fakeTransport) JoinRoom(_ context.Context, address, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, address)
	if errs := f.joinErr[address]; len(errs) > 0 {
		f.joinErr[address] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeTransport) LeaveRoom(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeTransport) joinCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...)
}

func (f *fakeTransport) leaveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

type fakeProvisioner struct{ address string }

func (f *fakeProvisioner) EnsureRoom(context.Context, uuid.UUID, models.Room) (string, error) {
	return f.address, nil
}

type fakeRepublisher struct {
	mu        sync.Mutex
	published []*models.Snapshot
}

func (f *fakeRepublisher) Publish(_ context.Context, snap *models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, snap)
	return nil
}

func testSnapshot(participantID uuid.UUID, roomType, address string) *models.Snapshot {
	roomID := uuid.New()
	return &models.Snapshot{
		SessionID: uuid.New(),
		Status:    models.StatusActive,
		Rooms: []models.Room{
			{ID: roomID, Name: "Room 1", Type: roomType, ParticipantIDs: []uuid.UUID{participantID}},
		},
		Assignments: []models.RoomAssignment{
			{ParticipantID: participantID, RoomID: roomID, RoomAddress: address, AssignedAt: time.Now()},
		},
		Participants: []models.Participant{
			{ID: participantID, Name: "ada", Status: models.ParticipantActive},
		},
	}
}

func newTestController(pid uuid.UUID, transport Transport, opts func(*Config)) *Controller {
	cfg := Config{
		ParticipantID: pid,
		DisplayName:   "ada",
		Transport:     transport,
		MaxAttempts:   3,
		Backoff:       time.Millisecond,
	}
	if opts != nil {
		opts(&cfg)
	}
	return NewController(cfg)
}

func TestController_JoinsAssignedRoom(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, nil)

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-a"))
	c.Wait()

	require.Equal(t, []string{"room-a"}, transport.joinCalls())
	require.Equal(t, "room-a", c.CurrentRoom())
	require.Zero(t, transport.leaveCalls())
}

func TestController_SameSnapshotTwiceJoinsOnce(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, nil)
	snap := testSnapshot(pid, "triad", "room-a")

	c.Apply(context.Background(), snap)
	c.Wait()
	c.Apply(context.Background(), snap)
	c.Wait()

	require.Equal(t, []string{"room-a"}, transport.joinCalls(), "at most one join/leave pair")
}

func TestController_LeavesStaleRoomOnChange(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, nil)

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-a"))
	c.Wait()
	c.Apply(context.Background(), testSnapshot(pid, "pair", "room-b"))
	c.Wait()

	require.Equal(t, []string{"room-a", "room-b"}, transport.joinCalls())
	require.Equal(t, 1, transport.leaveCalls())
	require.Equal(t, "room-b", c.CurrentRoom())
}

func TestController_HostRefusesBreakoutAssignment(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, func(cfg *Config) { cfg.IsHost = true })

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-a"))
	c.Wait()

	require.Empty(t, transport.joinCalls(), "host never joins a breakout room")
	require.Empty(t, c.CurrentRoom())

	// a main-room assignment is honored
	c.Apply(context.Background(), testSnapshot(pid, models.RoomTypeMain, "main-room"))
	c.Wait()
	require.Equal(t, []string{"main-room"}, transport.joinCalls())
}

func TestController_RetriesWhileTransportNotReady(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{joinErr: map[string][]error{
		"room-a": {ErrTransportNotReady, ErrTransportNotReady},
	}}
	c := newTestController(pid, transport, nil)

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-a"))
	c.Wait()

	require.Equal(t, []string{"room-a", "room-a", "room-a"}, transport.joinCalls())
	require.Equal(t, "room-a", c.CurrentRoom())
}

func TestController_ProvisionsFallbackForMissingRoom(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{joinErr: map[string][]error{
		"room-gone": {ErrRoomNotFound},
	}}
	republisher := &fakeRepublisher{}
	c := newTestController(pid, transport, func(cfg *Config) {
		cfg.Provisioner = &fakeProvisioner{address: "fallback-room"}
		cfg.Republisher = republisher
	})

	snap := testSnapshot(pid, "triad", "room-gone")
	c.Apply(context.Background(), snap)
	c.Wait()

	require.Equal(t, []string{"room-gone", "fallback-room"}, transport.joinCalls())
	require.Equal(t, "fallback-room", c.CurrentRoom())

	republisher.mu.Lock()
	defer republisher.mu.Unlock()
	require.Len(t, republisher.published, 1)
	require.Equal(t, "fallback-room", republisher.published[0].Assignments[0].RoomAddress)
	require.Equal(t, "room-gone", snap.Assignments[0].RoomAddress, "original snapshot untouched")
}

func TestController_CompletedSessionLeavesRoom(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, nil)

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-a"))
	c.Wait()

	ended := testSnapshot(pid, "triad", "room-a")
	ended.Status = models.StatusCompleted
	c.Apply(context.Background(), ended)
	c.Wait()

	require.Equal(t, 1, transport.leaveCalls())
	require.Empty(t, c.CurrentRoom())
}

func TestController_UnplacedParticipantStaysPut(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{}
	c := newTestController(pid, transport, nil)

	snap := testSnapshot(uuid.New(), "triad", "room-a")
	snap.Participants[0].Name = "someone-else"
	c.Apply(context.Background(), snap)
	c.Wait()

	require.Empty(t, transport.joinCalls(), "grace period: no join until placed")
	require.Zero(t, transport.leaveCalls())
}

func TestController_NameFallbackWhenIDChurns(t *testing.T) {
	reconnectedID := uuid.New() // id issued on reconnect, absent from snapshot
	transport := &fakeTransport{}
	c := newTestController(reconnectedID, transport, nil)

	snap := testSnapshot(uuid.New(), "triad", "room-a") // participant named "ada"
	c.Apply(context.Background(), snap)
	c.Wait()

	require.Equal(t, []string{"room-a"}, transport.joinCalls())
}

func TestController_NewerSnapshotSupersedesInFlightJoin(t *testing.T) {
	pid := uuid.New()
	transport := &fakeTransport{joinErr: map[string][]error{
		"room-old": {ErrTransportNotReady, ErrTransportNotReady, ErrTransportNotReady},
	}}
	c := newTestController(pid, transport, func(cfg *Config) { cfg.Backoff = 50 * time.Millisecond })

	c.Apply(context.Background(), testSnapshot(pid, "triad", "room-old"))
	c.Apply(context.Background(), testSnapshot(pid, "pair", "room-new"))
	c.Wait()

	require.Equal(t, "room-new", c.CurrentRoom())

	oldJoins := 0
	for _, addr := range transport.joinCalls() {
		if addr == "room-old" {
			oldJoins++
		}
	}
	require.LessOrEqual(t, oldJoins, 1, "stale reconcile stopped retrying once superseded")
}
