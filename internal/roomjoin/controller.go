// Package roomjoin drives one client's membership in the video transport:
// given the snapshot the client currently holds, it joins the assigned
// room, leaves stale ones, and recovers from missing rooms and a transport
// that is not ready yet.
package roomjoin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/models"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
)

// Config configures a per-client controller.
type Config struct {
	ParticipantID uuid.UUID
	DisplayName   string
	IsHost        bool
	Transport     Transport
	Provisioner   Provisioner
	Republisher   Republisher
	MaxAttempts   int
	Backoff       time.Duration
	Logger        *zap.Logger
}

// Controller reconciles the client's joined room against its assignment in
// the latest snapshot. Apply never blocks; a newer snapshot supersedes any
// in-flight join and the stale join's result is discarded on completion.
type Controller struct {
	cfg Config

	mu      sync.Mutex
	seq     uint64
	current string // address currently joined, "" when in no room
	wg      sync.WaitGroup
}

// NewController creates a room-join controller for one participant.
func NewController(cfg Config) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{cfg: cfg}
}

// Apply reconciles against a snapshot. Idempotent: re-applying the snapshot
// the client is already converged on is a no-op.
func (c *Controller) Apply(ctx context.Context, snap *models.Snapshot) {
	target, room := c.resolveTarget(snap)

	c.mu.Lock()
	if target == c.current {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.reconcile(ctx, seq, snap, room, target)
	}()
}

// CurrentRoom returns the address the client is joined to, "" for none.
func (c *Controller) CurrentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Wait blocks until all in-flight reconciliations finish. Used on shutdown
// and in tests.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// resolveTarget computes "my room" from the snapshot: match by participant
// id, fall back to display-name match when ids churned across reconnects.
// Returns "" when the client should be in no room (session completed) or
// has not been placed yet (grace period: stay put).
func (c *Controller) resolveTarget(snap *models.Snapshot) (string, *models.Room) {
	if snap.Status == models.StatusCompleted {
		return "", nil
	}
	assignment := snap.AssignmentFor(c.cfg.ParticipantID)
	if assignment == nil {
		for _, p := range snap.Participants {
			if p.Name == c.cfg.DisplayName {
				assignment = snap.AssignmentFor(p.ID)
				break
			}
		}
	}
	if assignment == nil {
		c.mu.Lock()
		current := c.current
		c.mu.Unlock()
		return current, nil // not placed yet: no-op
	}
	room := snap.RoomByID(assignment.RoomID)
	if c.cfg.IsHost && (room == nil || room.Type != models.RoomTypeMain) {
		// Defense in depth: the host never follows an assignment into a
		// breakout room, stale or otherwise.
		c.cfg.Logger.Warn("host assignment targets a breakout room; refusing",
			zap.String("room_address", assignment.RoomAddress))
		c.mu.Lock()
		current := c.current
		c.mu.Unlock()
		return current, nil
	}
	return assignment.RoomAddress, room
}

func (c *Controller) reconcile(ctx context.Context, seq uint64, snap *models.Snapshot, room *models.Room, target string) {
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if c.superseded(seq) {
			return
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.Backoff):
			}
		}

		err := c.moveTo(ctx, target)
		switch {
		case err == nil:
			if !c.superseded(seq) {
				c.setCurrent(target)
			}
			return
		case errors.Is(err, ErrTransportNotReady):
			c.cfg.Logger.Debug("transport not ready, deferring join",
				zap.String("room_address", target), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, ErrRoomNotFound):
			fallback, ok := c.provisionFallback(ctx, snap, room)
			if !ok {
				return
			}
			target = fallback
			continue
		default:
			// degrade to stale-but-recoverable; the next snapshot retries
			c.cfg.Logger.Warn("room join failed",
				zap.String("room_address", target), zap.Error(err))
			return
		}
	}
	c.cfg.Logger.Warn("room join abandoned after retries", zap.String("room_address", target))
}

// moveTo leaves the current room (if any) and joins target. An empty
// target only leaves.
func (c *Controller) moveTo(ctx context.Context, target string) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != "" && current != target {
		if err := c.cfg.Transport.LeaveRoom(ctx); err != nil {
			c.cfg.Logger.Warn("leave room failed", zap.String("room_address", current), zap.Error(err))
		}
		c.setCurrent("")
	}
	if target == "" {
		return nil
	}
	return c.cfg.Transport.JoinRoom(ctx, target, c.cfg.DisplayName)
}

// provisionFallback creates a deterministically-named replacement for a
// room missing upstream and republishes the corrected snapshot so every
// client converges on it.
func (c *Controller) provisionFallback(ctx context.Context, snap *models.Snapshot, room *models.Room) (string, bool) {
	if c.cfg.Provisioner == nil || room == nil {
		return "", false
	}
	address, err := c.cfg.Provisioner.EnsureRoom(ctx, snap.SessionID, *room)
	if err != nil {
		c.cfg.Logger.Warn("fallback room creation failed",
			zap.String("room_id", room.ID.String()), zap.Error(err))
		return "", false
	}
	if c.cfg.Republisher != nil {
		patched := *snap
		patched.Assignments = append([]models.RoomAssignment(nil), snap.Assignments...)
		for i := range patched.Assignments {
			if patched.Assignments[i].RoomID == room.ID {
				patched.Assignments[i].RoomAddress = address
			}
		}
		if err := c.cfg.Republisher.Publish(ctx, &patched); err != nil {
			c.cfg.Logger.Warn("fallback snapshot republish failed", zap.Error(err))
		}
	}
	c.cfg.Logger.Info("provisioned fallback room",
		zap.String("room_id", room.ID.String()), zap.String("room_address", address))
	return address, true
}

func (c *Controller) superseded(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.seq
}

func (c *Controller) setCurrent(address string) {
	c.mu.Lock()
	c.current = address
	c.mu.Unlock()
}
