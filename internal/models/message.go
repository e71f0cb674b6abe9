package models

import "time"

// MessageStatus tracks per-message delivery progress.
// Transitions only move forward: sent -> delivered -> read.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Rank orders statuses for the monotonic-transition check.
// Unknown statuses rank below "sent" so they can never win an update.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return 0
}

// Valid reports whether the status is one of the known values.
func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

// Message is a persisted chat message.
type Message struct {
	ID        string        `db:"id" json:"id"`
	ChatID    string        `db:"chat_id" json:"chatId"`
	SenderID  string        `db:"sender_id" json:"senderId"`
	Content   string        `db:"content" json:"content"`
	IsFromAI  bool          `db:"is_from_ai" json:"isFromAi"`
	Status    MessageStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// MessageWithSender is a message hydrated with the resolved sender identity.
type MessageWithSender struct {
	Message
	Sender User `json:"sender"`
}
