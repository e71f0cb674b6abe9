package ws

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Broadcaster fans a structured event out to every connection scoped to
// a chat. Delivery is fire-and-forget, at most once per connected
// recipient; there are no acknowledgment frames.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster constructs a Broadcaster over the registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast serializes event once and writes it to every connection
// scoped to chatID except excludeUserID (empty string excludes nobody).
// A failed write drops and unregisters only that recipient; delivery to
// the rest always continues.
func (b *Broadcaster) Broadcast(chatID string, event models.Event, excludeUserID string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: marshal event %q: %v", event.Type, err)
		return
	}

	b.registry.ForEachInChat(chatID, func(rec *ConnectionRecord) {
		if rec.UserID == excludeUserID {
			return
		}
		if err := rec.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("ws: write to user %s failed, dropping connection: %v", rec.UserID, err)
			rec.Conn.Close()
			// Evict by transport, not by user id: the user may have
			// re-registered a healthy connection since the snapshot,
			// and that record must survive the stale drop.
			b.registry.UnregisterConn(rec.Conn)
			observability.IncBroadcastDropped()
		}
	})
}
