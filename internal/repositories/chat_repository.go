package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, name string, kind models.ChatKind, createdBy string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID string, isAdmin bool) (models.ChatParticipant, error)
	GetParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat stores a new chat.
func (r *ChatRepo) CreateChat(ctx context.Context, name string, kind models.ChatKind, createdBy string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (name, kind, created_by) VALUES ($1, $2, $3)
         RETURNING id, name, kind, created_by, created_at`,
		name, kind, createdBy).
		Scan(&chat.ID, &chat.Name, &chat.Kind, &chat.CreatedBy, &chat.CreatedAt)
	return chat, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, name, kind, created_by, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns the chats the user participates in, newest first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.name, c.kind, c.created_by, c.created_at
         FROM chats c
         JOIN chat_participants cp ON cp.chat_id = c.id
         WHERE cp.user_id=$1
         ORDER BY c.created_at DESC`, userID)
	return chats, err
}

// AddParticipant joins a user to a chat. Re-adding an existing
// participant is a no-op that returns the current record.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID string, isAdmin bool) (models.ChatParticipant, error) {
	var p models.ChatParticipant
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, is_admin) VALUES ($1, $2, $3)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET is_admin = chat_participants.is_admin
         RETURNING chat_id, user_id, is_admin, joined_at`,
		chatID, userID, isAdmin).
		Scan(&p.ChatID, &p.UserID, &p.IsAdmin, &p.JoinedAt)
	return p, err
}

// GetParticipants returns all participants of a chat.
func (r *ChatRepo) GetParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error) {
	var participants []models.ChatParticipant
	err := r.db.SelectContext(ctx, &participants,
		`SELECT chat_id, user_id, is_admin, joined_at
         FROM chat_participants WHERE chat_id=$1 ORDER BY joined_at ASC`, chatID)
	return participants, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`,
		chatID, userID)
	return exists, err
}
