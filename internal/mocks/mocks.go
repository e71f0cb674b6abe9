package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/ai"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, name string, kind models.ChatKind, createdBy string) (models.Chat, error) {
	args := m.Called(ctx, name, kind, createdBy)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipant(ctx context.Context, chatID, userID string, isAdmin bool) (models.ChatParticipant, error) {
	args := m.Called(ctx, chatID, userID, isAdmin)
	var participant models.ChatParticipant
	if val := args.Get(0); val != nil {
		participant = val.(models.ChatParticipant)
	}
	return participant, args.Error(1)
}

func (m *ChatRepositoryMock) GetParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error) {
	args := m.Called(ctx, chatID)
	var participants []models.ChatParticipant
	if val := args.Get(0); val != nil {
		participants = val.([]models.ChatParticipant)
	}
	return participants, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID, senderID, content string, isFromAI bool) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, content, isFromAI)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetChatMessages(ctx context.Context, chatID string, limit int) ([]models.MessageWithSender, error) {
	args := m.Called(ctx, chatID, limit)
	var msgs []models.MessageWithSender
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithSender)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessageWithSender(ctx context.Context, messageID string) (models.MessageWithSender, error) {
	args := m.Called(ctx, messageID)
	var msg models.MessageWithSender
	if val := args.Get(0); val != nil {
		msg = val.(models.MessageWithSender)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	args := m.Called(ctx, messageID, status)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

type GeneratorMock struct {
	mock.Mock
}

func (m *GeneratorMock) Generate(ctx context.Context, message string, history []ai.Turn) string {
	args := m.Called(ctx, message, history)
	return args.String(0)
}

func (m *GeneratorMock) GenerateStream(ctx context.Context, message string, history []ai.Turn) (ai.ReplyStream, error) {
	args := m.Called(ctx, message, history)
	var stream ai.ReplyStream
	if val := args.Get(0); val != nil {
		stream = val.(ai.ReplyStream)
	}
	return stream, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ ai.Generator = (*GeneratorMock)(nil)
