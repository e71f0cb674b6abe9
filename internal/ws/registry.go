package ws

import (
	"errors"
	"log"
	"sync"
)

var ErrNotRegistered = errors.New("user not registered")

// Conn is the subset of *websocket.Conn the registry needs. Keeping it
// an interface lets tests run isolated registries with fake transports.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConnectionRecord tracks one live connection and the chat it is
// currently scoped to. Records are owned exclusively by the registry.
type ConnectionRecord struct {
	UserID string
	Conn   Conn
	ChatID string

	wmu sync.Mutex
}

// WriteMessage writes to the underlying transport, serializing against
// other writers of the same record; gorilla connections support only
// one concurrent writer.
func (rec *ConnectionRecord) WriteMessage(messageType int, data []byte) error {
	rec.wmu.Lock()
	defer rec.wmu.Unlock()
	return rec.Conn.WriteMessage(messageType, data)
}

// Registry maps user ids to their single live connection. All handler
// goroutines share one registry; every mutation happens under the lock,
// while network writes always happen against snapshots outside it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*ConnectionRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*ConnectionRecord)}
}

// Register installs or replaces the record for userID. A superseded
// connection is closed so it cannot linger as a half-dead transport.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = &ConnectionRecord{UserID: userID, Conn: conn}
	r.mu.Unlock()

	if prev != nil && prev.Conn != conn {
		log.Printf("ws: superseding connection for user %s", userID)
		prev.Conn.Close()
	}
}

// SetScope updates the chat the user's connection is viewing.
func (r *Registry) SetScope(userID, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[userID]
	if !ok {
		return ErrNotRegistered
	}
	rec.ChatID = chatID
	return nil
}

// Unregister removes the record for userID, if any.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// UnregisterConn removes the record holding conn and reports which user
// it belonged to. Used at close-time when only the transport is known.
// A record whose connection was already superseded is left untouched.
func (r *Registry) UnregisterConn(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, rec := range r.conns {
		if rec.Conn == conn {
			delete(r.conns, userID)
			return userID, true
		}
	}
	return "", false
}

// ForEachInChat invokes fn once per connection currently scoped to
// chatID. The matching records are snapshotted under a brief read lock
// and fn runs outside it, so a slow recipient never blocks the registry.
func (r *Registry) ForEachInChat(chatID string, fn func(rec *ConnectionRecord)) {
	r.mu.RLock()
	snapshot := make([]*ConnectionRecord, 0, len(r.conns))
	for _, rec := range r.conns {
		if rec.ChatID == chatID {
			snapshot = append(snapshot, rec)
		}
	}
	r.mu.RUnlock()

	for _, rec := range snapshot {
		fn(rec)
	}
}

// Len reports the number of live records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
