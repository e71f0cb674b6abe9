// Package client provides a reconnecting websocket transport for
// messenger consumers: one live connection, automatic re-dial on loss,
// and re-declared chat scope after an invisible reconnect.
package client

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/models"
)

// State is the transport lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

const (
	defaultReconnectAttempts = 5
	defaultReconnectInterval = 3 * time.Second
)

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host:8083/ws.
	URL string
	// UserID identifies this client in join_chat and typing envelopes.
	UserID string
	// MaxReconnectAttempts bounds consecutive automatic re-dials.
	// Zero means the default of 5.
	MaxReconnectAttempts int
	// ReconnectInterval is the fixed delay between attempts.
	// Zero means the default of 3 seconds.
	ReconnectInterval time.Duration
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer

	OnMessage    func(models.Event)
	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
}

// Client maintains a single websocket connection to the messenger
// service. All exported methods are safe for concurrent use.
type Client struct {
	opts Options

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	chatID   string
	attempts int
	timer    *time.Timer
	closed   bool
}

// New builds a Client. Connect must be called to open the transport.
func New(opts Options) *Client {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{opts: opts, state: StateDisconnected}
}

// State reports the current transport state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the transport. It is idempotent: a call while already
// connecting or connected does nothing. A manual call also re-arms a
// transport that exhausted its automatic attempts.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.closed = false
	url := c.opts.URL
	dialer := c.opts.Dialer
	c.mu.Unlock()

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
		c.handleClose()
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect raced the dial; the new connection loses.
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	chatID := c.chatID
	c.mu.Unlock()

	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
	if chatID != "" {
		// Server-side scope died with the old connection; re-declare it.
		c.JoinChat(chatID)
	}

	go c.readLoop(conn)
}

// Disconnect closes the live transport and cancels any pending
// reconnect. This is the only cancellation path.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.state = StateDisconnected
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// JoinChat declares the chat this client is viewing. The scope is
// remembered and re-declared after every reconnect.
func (c *Client) JoinChat(chatID string) {
	c.mu.Lock()
	c.chatID = chatID
	c.mu.Unlock()

	c.send(models.Event{Type: models.EventJoinChat, UserID: c.opts.UserID, ChatID: chatID})
}

// LeaveChat clears the declared chat scope.
func (c *Client) LeaveChat() {
	c.mu.Lock()
	c.chatID = ""
	c.mu.Unlock()
}

// SendTyping relays a typing signal for the currently joined chat.
// Dropped silently when no chat is joined or the transport is down.
func (c *Client) SendTyping(isTyping bool) {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" {
		return
	}

	c.send(models.Event{Type: models.EventTyping, UserID: c.opts.UserID, ChatID: chatID, IsTyping: isTyping})
}

func (c *Client) send(evt models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.state != StateConnected {
		return
	}
	if err := c.conn.WriteJSON(evt); err != nil {
		log.Printf("client write failed: %v", err)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.handleClose()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		evt, err := models.DecodeEvent(data)
		if err != nil {
			continue
		}
		if !evt.Known() {
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(evt)
		}
	}
}

// handleClose drives the close side of the state machine: mark the
// transport down, then schedule one reconnect on a fixed interval until
// the attempt bound is hit. A single timer is kept; it is cleared
// before rescheduling so overlapping closes never stack attempts.
func (c *Client) handleClose() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected

	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.mu.Unlock()
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect()
		}
		return
	}
	c.attempts++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.ReconnectInterval, c.Connect)
	c.mu.Unlock()

	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect()
	}
}
