package models

import "time"

// ChatKind enumerates the conversation kinds.
type ChatKind string

const (
	ChatKindDirect ChatKind = "direct"
	ChatKindGroup  ChatKind = "group"
	ChatKindAIBot  ChatKind = "ai_bot"
)

// Valid reports whether the kind is one of the known values.
func (k ChatKind) Valid() bool {
	switch k {
	case ChatKindDirect, ChatKindGroup, ChatKindAIBot:
		return true
	}
	return false
}

// Chat is a conversation scope containing participants and messages.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name,omitempty"`
	Kind      ChatKind  `db:"kind" json:"kind"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ChatParticipant joins a user to a chat.
type ChatParticipant struct {
	ChatID   string    `db:"chat_id" json:"chatId"`
	UserID   string    `db:"user_id" json:"userId"`
	IsAdmin  bool      `db:"is_admin" json:"isAdmin"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// ChatSummary is the API view of a chat in the chat list.
type ChatSummary struct {
	Chat
	LastMessage *MessageWithSender `json:"lastMessage,omitempty"`
}
