package models

import "encoding/json"

// Event type tags carried on the websocket envelope.
const (
	EventJoinChat   = "join_chat"
	EventTyping     = "typing"
	EventNewMessage = "new_message"
	EventUserTyping = "user_typing"
)

// Event is the websocket envelope, both directions. Only the fields
// relevant to the tagged type are populated; unknown types decode fine
// and are dropped by the receiver rather than treated as errors.
type Event struct {
	Type     string             `json:"type"`
	UserID   string             `json:"userId,omitempty"`
	ChatID   string             `json:"chatId,omitempty"`
	IsTyping bool               `json:"isTyping,omitempty"`
	Message  *MessageWithSender `json:"message,omitempty"`
}

// Known reports whether the event carries a recognized type tag.
func (e Event) Known() bool {
	switch e.Type {
	case EventJoinChat, EventTyping, EventNewMessage, EventUserTyping:
		return true
	}
	return false
}

// NewMessageEvent builds the fan-out envelope for a persisted message.
func NewMessageEvent(msg MessageWithSender) Event {
	return Event{Type: EventNewMessage, Message: &msg}
}

// UserTypingEvent builds the presence relay envelope.
func UserTypingEvent(userID string, isTyping bool) Event {
	return Event{Type: EventUserTyping, UserID: userID, IsTyping: isTyping}
}

// DecodeEvent parses an inbound envelope. A malformed frame is an error;
// an unrecognized type is not.
func DecodeEvent(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}
