// Package assignments publishes room/assignment snapshots to a shared
// redis-backed store and notifies watchers of changes. Snapshots are
// whole-document replacements keyed by session id: last writer wins, no
// merging, no version vectors. Watchers tolerate reordering because they
// always resolve against the full snapshot they currently hold.
package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/models"
)

const (
	keyPrefix      = "session:"
	keySuffix      = ":assignments"
	snapshotTTL    = 24 * time.Hour
	publishTimeout = 5 * time.Second
)

// Synchronizer is the redis-backed snapshot store and change feed.
type Synchronizer struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSynchronizer creates a snapshot synchronizer.
func NewSynchronizer(client *redis.Client, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{client: client, logger: logger}
}

func snapshotKey(sessionID uuid.UUID) string {
	return keyPrefix + sessionID.String() + keySuffix
}

// Publish stores the snapshot and notifies every watcher of the session,
// including subscribers in this process.
func (s *Synchronizer) Publish(ctx context.Context, snap *models.Snapshot) error {
	snap.PublishedAt = time.Now()
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	key := snapshotKey(snap.SessionID)
	if err := s.client.Set(ctx, key, body, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := s.client.Publish(ctx, key, body).Err(); err != nil {
		return fmt.Errorf("notify snapshot: %w", err)
	}
	s.logger.Debug("snapshot published",
		zap.String("session_id", snap.SessionID.String()),
		zap.Int("rooms", len(snap.Rooms)),
		zap.Int("assignments", len(snap.Assignments)))
	return nil
}

// Load returns the last stored snapshot for a session, or nil when none
// exists. A corrupt stored value is discarded, never returned as an error
// the caller has to die on.
func (s *Synchronizer) Load(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		s.logger.Warn("discarding malformed stored snapshot",
			zap.String("session_id", sessionID.String()), zap.Error(err))
		return nil, nil
	}
	return snap, nil
}

// Subscribe delivers every observed snapshot for a session, including ones
// this process published itself; handlers must be idempotent. Returns a
// cancel function to stop the subscription.
func (s *Synchronizer) Subscribe(sessionID uuid.UUID, handler func(*models.Snapshot)) (cancel func(), err error) {
	key := snapshotKey(sessionID)
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, key)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe snapshots: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				snap, err := decodeSnapshot([]byte(msg.Payload))
				if err != nil {
					// keep last-good state; never crash on a partial write
					s.logger.Warn("discarding malformed snapshot",
						zap.String("session_id", sessionID.String()), zap.Error(err))
					continue
				}
				handler(snap)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}

func decodeSnapshot(raw []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	if snap.SessionID == uuid.Nil {
		return nil, fmt.Errorf("snapshot missing session id")
	}
	return &snap, nil
}
