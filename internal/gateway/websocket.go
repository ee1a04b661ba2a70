package gateway

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/orchestration"
)

// EventTypeSnapshot is the first event on every stream
const EventTypeSnapshot = "snapshot"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotData is the session state a client needs before incremental events
type SnapshotData struct {
	State    string                       `json:"state"`
	Messages []models.ConversationMessage `json:"messages"`
	Files    []string                     `json:"files"`
}

// SessionStream pushes session events to websocket clients
type SessionStream struct {
	sessions *orchestration.Service
	tracer   trace.Tracer
	upgrader websocket.Upgrader
}

// NewSessionStream creates a websocket stream handler. An empty
// allowedOrigins accepts any origin.
func NewSessionStream(sessions *orchestration.Service, allowedOrigins []string) *SessionStream {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &SessionStream{
		sessions: sessions,
		tracer:   otel.Tracer("session-stream"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				if !ok {
					log.Printf(`{"level":"warn","message":"WebSocket origin rejected","origin":"%s"}`, r.Header.Get("Origin"))
				}
				return ok
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// StreamSession handles WebSocket /api/ws/sessions/:id
// @Summary Stream session events
// @Description WebSocket endpoint streaming conversation, file and pipeline events for a session
// @Tags sessions
// @Param id path string true "Session ID"
// @Param token query string false "Session token when the Authorization header cannot be set"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/sessions/{id} [get]
func (s *SessionStream) StreamSession(c *gin.Context) {
	_, span := s.tracer.Start(c.Request.Context(), "session_stream.stream_session")
	defer span.End()

	sessionID := c.Param("id")
	span.SetAttributes(attribute.String("session_id", sessionID))

	sess, err := s.sessions.GetSession(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"error","message":"Failed to upgrade connection","session_id":"%s","error":"%v"}`, sessionID, err)
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so nothing between the two is lost.
	events, cancel := sess.Controller.Subscribe()
	defer cancel()

	snapshot := models.StreamEvent{
		EventType: EventTypeSnapshot,
		SessionID: sessionID,
		Data: SnapshotData{
			State:    string(sess.Controller.State()),
			Messages: sess.Controller.Messages(),
			Files:    sess.Store.Keys(),
		},
		Timestamp: time.Now().UTC(),
	}
	if err := writeJSON(conn, snapshot); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to send snapshot","session_id":"%s","error":"%v"}`, sessionID, err)
		return
	}

	log.Printf(`{"level":"info","message":"WebSocket stream opened","session_id":"%s"}`, sessionID)
	s.pump(conn, events, sessionID)
	log.Printf(`{"level":"info","message":"WebSocket stream closed","session_id":"%s"}`, sessionID)
}

// pump forwards events until the client goes away or the session closes.
// Clients only send control frames; the read loop exists to process them.
func (s *SessionStream) pump(conn *websocket.Conn, events <-chan models.StreamEvent, sessionID string) {
	closed := make(chan struct{})

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf(`{"level":"debug","message":"Client read ended","session_id":"%s","error":"%v"}`, sessionID, err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				sendErrorToClient(conn, "Session closed")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeJSON(conn, event); err != nil {
				log.Printf(`{"level":"warn","message":"Failed to forward event","session_id":"%s","event_type":"%s","error":"%v"}`, sessionID, event.EventType, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// sendErrorToClient sends an error event to the WebSocket client
func sendErrorToClient(conn *websocket.Conn, message string) {
	errorEvent := models.StreamEvent{
		EventType: models.EventTypeError,
		Data:      map[string]string{"error": message},
		Timestamp: time.Now().UTC(),
	}

	if err := writeJSON(conn, errorEvent); err != nil {
		log.Printf(`{"level":"debug","message":"Failed to send error to client","error":"%v"}`, err)
	}
}
