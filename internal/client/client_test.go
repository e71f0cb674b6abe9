package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitEvent(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return models.Event{}
	}
}

func TestConnectDeliversServerEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Unknown envelope types must be dropped, not surfaced.
		conn.WriteJSON(map[string]string{"type": "ping"})
		msg := models.MessageWithSender{}
		msg.Content = "hi"
		conn.WriteJSON(models.NewMessageEvent(msg))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan models.Event, 4)
	c := New(Options{
		URL:       wsURL(server),
		UserID:    "alice",
		OnMessage: func(evt models.Event) { received <- evt },
	})
	c.Connect()
	defer c.Disconnect()

	evt := waitEvent(t, received)
	if evt.Type != models.EventNewMessage || evt.Message == nil || evt.Message.Content != "hi" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	var connCount int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&connCount, 1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := New(Options{URL: wsURL(server), UserID: "alice"})
	c.Connect()
	defer c.Disconnect()

	c.Connect()
	c.Connect()
	time.Sleep(50 * time.Millisecond)

	if n := atomic.LoadInt32(&connCount); n != 1 {
		t.Fatalf("expected a single server connection, got %d", n)
	}
	if c.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", c.State())
	}
}

func TestChatScopeRedeclaredAfterReconnect(t *testing.T) {
	var connCount int32
	joins := make(chan models.Event, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&connCount, 1)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			evt, err := models.DecodeEvent(data)
			if err != nil {
				continue
			}
			if evt.Type == models.EventJoinChat {
				joins <- evt
				if n == 1 {
					// Kill the first connection to force a reconnect.
					return
				}
			}
		}
	}))
	defer server.Close()

	c := New(Options{
		URL:               wsURL(server),
		UserID:            "alice",
		ReconnectInterval: 10 * time.Millisecond,
	})
	c.Connect()
	defer c.Disconnect()
	c.JoinChat("c1")

	first := waitEvent(t, joins)
	if first.UserID != "alice" || first.ChatID != "c1" {
		t.Fatalf("unexpected first join: %+v", first)
	}

	// The server dropped the first connection after the join; the
	// client must reconnect and re-declare the same scope by itself.
	second := waitEvent(t, joins)
	if second.Type != models.EventJoinChat || second.ChatID != "c1" {
		t.Fatalf("scope was not re-declared after reconnect: %+v", second)
	}
	if atomic.LoadInt32(&connCount) < 2 {
		t.Fatalf("expected a second connection")
	}
}

func TestReconnectStopsAtAttemptBound(t *testing.T) {
	// A closed server makes every dial fail immediately.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := wsURL(server)
	server.Close()

	var mu sync.Mutex
	dialErrors := 0
	c := New(Options{
		URL:                  url,
		UserID:               "alice",
		MaxReconnectAttempts: 5,
		ReconnectInterval:    5 * time.Millisecond,
		OnError: func(error) {
			mu.Lock()
			dialErrors++
			mu.Unlock()
		},
	})
	c.Connect()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := dialErrors
		mu.Unlock()
		if n >= 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 6 failed dials (initial + 5 retries), saw %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Past the bound nothing further may be scheduled.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	final := dialErrors
	mu.Unlock()
	if final != 6 {
		t.Fatalf("reconnect attempts exceeded the bound: %d dials", final)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", c.State())
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := wsURL(server)
	server.Close()

	var mu sync.Mutex
	dialErrors := 0
	c := New(Options{
		URL:               url,
		UserID:            "alice",
		ReconnectInterval: 20 * time.Millisecond,
		OnError: func(error) {
			mu.Lock()
			dialErrors++
			mu.Unlock()
		},
	})
	c.Connect()
	c.Disconnect()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	n := dialErrors
	mu.Unlock()
	if n != 1 {
		t.Fatalf("pending reconnect survived Disconnect: %d dials", n)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", c.State())
	}
}
