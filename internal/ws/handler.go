package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Handler owns the websocket endpoint: it upgrades connections, feeds
// inbound envelopes to the registry and the typing relay, and tears the
// record down on close.
type Handler struct {
	registry    *Registry
	broadcaster *Broadcaster
}

// NewHandler constructs a Handler.
func NewHandler(registry *Registry, broadcaster *Broadcaster) *Handler {
	return &Handler{registry: registry, broadcaster: broadcaster}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its read loop. The connection
// stays anonymous until the first join_chat envelope declares a user.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishConnEvent(ctx, "ws_connect", info, "")

	go h.readLoop(conn, info)
}

func (h *Handler) readLoop(conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	var closeReason string
	defer func() {
		if userID, ok := h.registry.UnregisterConn(conn); ok {
			info.UserID = userID
			log.Printf("ws: user %s disconnected", userID)
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishConnEvent(ctx, "ws_disconnect", info, closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishConnEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}

		evt, err := models.DecodeEvent(data)
		if err != nil {
			log.Printf("ws: malformed envelope from %s: %v", info.IP, err)
			continue
		}

		switch evt.Type {
		case models.EventJoinChat:
			h.handleJoinChat(conn, &info, evt)
		case models.EventTyping:
			h.handleTyping(evt)
		default:
			// Unknown types are dropped, not fatal.
		}
	}
}

// handleJoinChat installs the record on first join and re-scopes it on
// subsequent joins. Re-joining after an invisible reconnect lands here
// too, which is what makes the client's replayed intent stick.
func (h *Handler) handleJoinChat(conn *websocket.Conn, info *ConnInfo, evt models.Event) {
	if evt.UserID == "" {
		return
	}
	if info.UserID != evt.UserID {
		// A connection switching identities must not leave the old
		// user's record pointing at this same transport.
		if info.UserID != "" {
			h.registry.UnregisterConn(conn)
		}
		info.UserID = evt.UserID
		h.registry.Register(evt.UserID, conn)
	}
	if err := h.registry.SetScope(evt.UserID, evt.ChatID); err != nil {
		log.Printf("ws: set scope for user %s: %v", evt.UserID, err)
		return
	}
	log.Printf("ws: user %s joined chat %s", evt.UserID, evt.ChatID)
}

// handleTyping relays the ephemeral presence signal to the chat's other
// members. Nothing is persisted and ordering is not guaranteed.
func (h *Handler) handleTyping(evt models.Event) {
	if evt.UserID == "" || evt.ChatID == "" {
		return
	}
	h.broadcaster.Broadcast(evt.ChatID, models.UserTypingEvent(evt.UserID, evt.IsTyping), evt.UserID)
	observability.IncWSEvent("typing")
}

func (h *Handler) publishConnEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.messenger", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
