package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages. Callers only
// ever see fully hydrated records or a not-found error.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID, senderID, content string, isFromAI bool) (models.Message, error)
	GetChatMessages(ctx context.Context, chatID string, limit int) ([]models.MessageWithSender, error)
	GetMessageWithSender(ctx context.Context, messageID string) (models.MessageWithSender, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with the initial "sent" status.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID, senderID, content string, isFromAI bool) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content, is_from_ai) VALUES ($1, $2, $3, $4)
         RETURNING id, chat_id, sender_id, content, is_from_ai, status, created_at`,
		chatID, senderID, content, isFromAI).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.IsFromAI, &msg.Status, &msg.CreatedAt)
	return msg, err
}

// GetChatMessages returns the most recent messages of a chat in
// chronological order, hydrated with the sender identity.
func (r *MessageRepo) GetChatMessages(ctx context.Context, chatID string, limit int) ([]models.MessageWithSender, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryxContext(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_from_ai, m.status, m.created_at,
                u.id AS sender_user_id, COALESCE(u.email, '') AS email, u.first_name, u.last_name, u.profile_image_url, u.created_at AS sender_created_at
         FROM (
             SELECT * FROM messages WHERE chat_id=$1 ORDER BY created_at DESC LIMIT $2
         ) m
         JOIN users u ON u.id = m.sender_id
         ORDER BY m.created_at ASC`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.MessageWithSender
	for rows.Next() {
		var m models.MessageWithSender
		if err := rows.Scan(
			&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.IsFromAI, &m.Status, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Email, &m.Sender.FirstName, &m.Sender.LastName,
			&m.Sender.ProfileImageURL, &m.Sender.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessageWithSender retrieves a single hydrated message.
func (r *MessageRepo) GetMessageWithSender(ctx context.Context, messageID string) (models.MessageWithSender, error) {
	var m models.MessageWithSender
	err := r.db.QueryRowxContext(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_from_ai, m.status, m.created_at,
                u.id, COALESCE(u.email, ''), u.first_name, u.last_name, u.profile_image_url, u.created_at
         FROM messages m
         JOIN users u ON u.id = m.sender_id
         WHERE m.id=$1`, messageID).
		Scan(
			&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.IsFromAI, &m.Status, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Email, &m.Sender.FirstName, &m.Sender.LastName,
			&m.Sender.ProfileImageURL, &m.Sender.CreatedAt,
		)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageWithSender{}, ErrMessageNotFound
	}
	return m, err
}

// UpdateMessageStatus advances the delivery status. The guarded UPDATE
// ignores regressions so the status never moves backwards.
func (r *MessageRepo) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET status=$2
         WHERE id=$1
           AND (CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 ELSE 3 END)
             < (CASE $2 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 ELSE 3 END)`,
		messageID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		// Either the message does not exist or the transition would
		// regress; distinguish the two for the caller.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
			return err
		}
		if !exists {
			return ErrMessageNotFound
		}
	}
	return nil
}
