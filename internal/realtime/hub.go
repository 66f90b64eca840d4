package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher is the interface for publishing session events to Redis
// (for cross-instance broadcast).
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to session channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// SnapshotSource is the assignment synchronizer surface the hub consumes:
// the change feed plus the last stored snapshot for late joiners.
type SnapshotSource interface {
	Subscribe(sessionID uuid.UUID, handler func(*models.Snapshot)) (cancel func(), err error)
	Load(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error)
}

// Hub maintains session_id -> set of connections, broadcasts events, and
// feeds every observed assignment snapshot through each connection's
// room-join controller. Uses Redis pub/sub for horizontal scaling.
type Hub struct {
	sessions  map[uuid.UUID]map[string]*Client
	eventSubs map[uuid.UUID]func() // cancel Redis event subscription per session
	snapSubs  map[uuid.UUID]func() // cancel snapshot subscription per session
	mu        sync.RWMutex
	logger    *zap.Logger
	redis     RedisPublisher
	redisSub  RedisSubscriber
	snapshots SnapshotSource
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber, snapshots SnapshotSource) *Hub {
	return &Hub{
		sessions:  make(map[uuid.UUID]map[string]*Client),
		eventSubs: make(map[uuid.UUID]func()),
		snapSubs:  make(map[uuid.UUID]func()),
		logger:    logger,
		redis:     redisPub,
		redisSub:  redisSub,
		snapshots: snapshots,
	}
}

// Register adds a client to a session. The first client starts the Redis
// event subscription and the snapshot watch for that session; the new
// client is immediately reconciled against the last stored snapshot so a
// late joiner lands in the right room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSession(c.SessionID, func(event string, payload []byte) {
				h.BroadcastToSession(c.SessionID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.eventSubs[c.SessionID] = cancel
			}
		}
		if h.snapshots != nil {
			sessionID := c.SessionID
			cancel, err := h.snapshots.Subscribe(sessionID, func(snap *models.Snapshot) {
				h.applySnapshot(sessionID, snap)
			})
			if err == nil {
				h.snapSubs[sessionID] = cancel
			}
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	count := len(h.sessions[c.SessionID])
	h.mu.Unlock()

	if h.snapshots != nil {
		if snap, err := h.snapshots.Load(context.Background(), c.SessionID); err == nil && snap != nil {
			c.ApplySnapshot(snap)
		}
	}
	h.BroadcastToSession(c.SessionID, "presence", map[string]int{"count": count})
	h.logger.Debug("client joined session",
		zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session. Cancels the session's
// subscriptions when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.eventSubs[c.SessionID]; ok {
				cancel()
				delete(h.eventSubs, c.SessionID)
			}
			if cancel, ok := h.snapSubs[c.SessionID]; ok {
				cancel()
				delete(h.snapSubs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	if count > 0 {
		h.BroadcastToSession(c.SessionID, "presence", map[string]int{"count": count})
	}
	h.logger.Debug("client left session",
		zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// applySnapshot fans one snapshot out: the raw document to every browser,
// then a reconcile pass through every connection's room-join controller.
// Snapshots are idempotent whole-replacements, so re-delivery is harmless.
func (h *Hub) applySnapshot(sessionID uuid.UUID, snap *models.Snapshot) {
	h.BroadcastToSession(sessionID, "assignments", snap)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.ApplySnapshot(snap)
	}
}

// BroadcastToSession sends a message to all clients in a session (local only).
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToSessionAndPublish sends to local clients and publishes to
// Redis for other instances.
func (h *Hub) BroadcastToSessionAndPublish(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToSession(sessionID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishSessionEvent(sessionID, event, data)
	}
}

// AudienceCount returns the number of connected clients in a session.
func (h *Hub) AudienceCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// SendToClient sends a message to a single client in a session.
func (h *Hub) SendToClient(sessionID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.sessions[sessionID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
