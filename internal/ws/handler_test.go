package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	handler := NewHandler(registry, NewBroadcaster(registry))

	router := gin.New()
	router.GET("/ws", handler.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, registry
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForScoped(t *testing.T, registry *Registry, chatID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		n := 0
		registry.ForEachInChat(chatID, func(*ConnectionRecord) { n++ })
		if n == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections scoped to %s, have %d", want, chatID, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTypingRelayedToOthersNotSender(t *testing.T) {
	server, registry := newTestServer(t)

	alice := dialWS(t, server)
	bob := dialWS(t, server)

	if err := alice.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "alice", ChatID: "g1"}); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := bob.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "bob", ChatID: "g1"}); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	waitForScoped(t, registry, "g1", 2)

	if err := alice.WriteJSON(models.Event{Type: models.EventTyping, UserID: "alice", ChatID: "g1", IsTyping: true}); err != nil {
		t.Fatalf("typing: %v", err)
	}

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var relayed models.Event
	if err := bob.ReadJSON(&relayed); err != nil {
		t.Fatalf("bob read: %v", err)
	}
	if relayed.Type != models.EventUserTyping || relayed.UserID != "alice" || !relayed.IsTyping {
		t.Fatalf("unexpected relay: %+v", relayed)
	}

	// The sender must not receive its own typing signal back.
	alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Fatalf("sender received its own typing relay")
	}
}

func TestUnknownEnvelopeTypeIsIgnored(t *testing.T) {
	server, registry := newTestServer(t)

	conn := dialWS(t, server)
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "alice", ChatID: "g1"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// The unknown frame must not have killed the connection; the join
	// after it still lands.
	waitForScoped(t, registry, "g1", 1)
}

func TestRejoinAsDifferentUserReplacesRecord(t *testing.T) {
	server, registry := newTestServer(t)

	conn := dialWS(t, server)
	if err := conn.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "alice", ChatID: "g1"}); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	waitForScoped(t, registry, "g1", 1)

	if err := conn.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "bob", ChatID: "g1"}); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		users := []string{}
		registry.ForEachInChat("g1", func(rec *ConnectionRecord) {
			users = append(users, rec.UserID)
		})
		if len(users) == 1 && users[0] == "bob" && registry.Len() == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected only bob's record after identity switch, have %v (len=%d)", users, registry.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDisconnectRemovesRegistryRecord(t *testing.T) {
	server, registry := newTestServer(t)

	conn := dialWS(t, server)
	if err := conn.WriteJSON(models.Event{Type: models.EventJoinChat, UserID: "alice", ChatID: "g1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitForScoped(t, registry, "g1", 1)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("record not removed after close, len=%d", registry.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
