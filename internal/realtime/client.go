package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/models"
	"github.com/convene-app/backend/internal/roomjoin"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParticipantLookup resolves a participant within a session, used to
// authenticate the socket and to learn the host flag and display name.
type ParticipantLookup func(sessionID, participantID uuid.UUID) (*models.Participant, error)

// TokenMinter mints a provider join token for one participant and room
// address. Optional; when nil, join_room events carry no token.
type TokenMinter func(sessionID, participantID uuid.UUID, roomAddress, displayName string) (string, error)

// Client represents a single WebSocket connection in a session. Each
// connection carries its own room-join controller so reconciliation
// state (current room, in-flight moves) is per participant.
type Client struct {
	ID            string
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	DisplayName   string
	IsHost        bool
	JoinedAt      time.Time
	hub           *Hub
	conn          *websocket.Conn
	send          chan WSMessage
	controller    *roomjoin.Controller
	mintToken     func(roomAddress string) (string, error)
	logger        *zap.Logger
}

// ApplySnapshot feeds an assignment snapshot to this connection's
// room-join controller.
func (c *Client) ApplySnapshot(snap *models.Snapshot) {
	if c.controller != nil {
		c.controller.Apply(context.Background(), snap)
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, lookup ParticipantLookup, provisioner roomjoin.Provisioner, republisher roomjoin.Republisher, mint TokenMinter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		participantIDStr := c.Query("participant_id")
		if sessionIDStr == "" || participantIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and participant_id required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		participantID, err := uuid.Parse(participantIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant_id"})
			return
		}
		participant, err := lookup(sessionID, participantID)
		if err != nil || participant == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown participant"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:            uuid.New().String(),
			SessionID:     sessionID,
			ParticipantID: participantID,
			DisplayName:   participant.Name,
			IsHost:        participant.IsHost,
			JoinedAt:      time.Now(),
			hub:           hub,
			conn:          conn,
			send:          make(chan WSMessage, 256),
			logger:        logger,
		}
		if mint != nil {
			client.mintToken = func(roomAddress string) (string, error) {
				return mint(sessionID, participantID, roomAddress, participant.Name)
			}
		}
		client.controller = roomjoin.NewController(roomjoin.Config{
			ParticipantID: participantID,
			DisplayName:   participant.Name,
			IsHost:        participant.IsHost,
			Transport:     &wsTransport{c: client},
			Provisioner:   provisioner,
			Republisher:   republisher,
			Logger:        logger,
		})

		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "join":
			c.hub.BroadcastToSessionAndPublish(c.SessionID, "presence", map[string]int{
				"count": c.hub.AudienceCount(c.SessionID),
			})
		case "ping":
			c.hub.SendToClient(c.SessionID, c.ID, "pong", nil)
		default:
			// read-only protocol: session control flows through HTTP,
			// assignments through snapshots
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
