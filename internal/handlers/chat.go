package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/ai"
	"messenger-service/internal/chat"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

const defaultMessageLimit = 50

// messagePipeline is the slice of the pipeline the handlers need.
type messagePipeline interface {
	SendMessage(ctx context.Context, chatID, senderID, content string) (models.MessageWithSender, error)
	StreamReply(ctx context.Context, chatID, content string) (ai.ReplyStream, error)
}

// ChatHandler manages chat and message endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	pipeline    messagePipeline
	audit       *telemetry.AuditEmitter
	botUserID   string
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, pipeline messagePipeline, audit *telemetry.AuditEmitter, botUserID string) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		pipeline:    pipeline,
		audit:       audit,
		botUserID:   botUserID,
	}
}

// GetMe returns the authenticated user's profile.
func (h *ChatHandler) GetMe(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.userRepo.GetUser(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListChats returns the chats visible to the authenticated user, each
// with its most recent message when one exists.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := models.ChatSummary{Chat: chat}
		if recent, err := h.messageRepo.GetChatMessages(c.Request.Context(), chat.ID, 1); err == nil && len(recent) > 0 {
			last := recent[len(recent)-1]
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// CreateChat creates a chat and enrolls the caller plus any listed
// participants. ai_bot chats get the assistant enrolled automatically.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name           string   `json:"name"`
		Kind           string   `json:"kind" binding:"required"`
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := models.ChatKind(req.Kind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat kind"})
		return
	}

	chat, err := h.chatRepo.CreateChat(c.Request.Context(), req.Name, kind, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	if _, err := h.chatRepo.AddParticipant(c.Request.Context(), chat.ID, userID, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enroll creator"})
		return
	}
	for _, pid := range req.ParticipantIDs {
		if pid == "" || pid == userID {
			continue
		}
		if _, err := h.chatRepo.AddParticipant(c.Request.Context(), chat.ID, pid, false); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enroll participant"})
			return
		}
	}
	if kind == models.ChatKindAIBot {
		if _, err := h.chatRepo.AddParticipant(c.Request.Context(), chat.ID, h.botUserID, false); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enroll assistant"})
			return
		}
	}

	h.emitAudit(c, "INFO", "Chat created")
	c.JSON(http.StatusCreated, chat)
}

// GetChat returns a chat with its participant list.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	chat, ok := h.requireMembership(c, chatID, userID)
	if !ok {
		return
	}

	participants, err := h.chatRepo.GetParticipants(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat, "participants": participants})
}

// GetChatMessages returns the recent message window, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, ok := h.requireMembership(c, chatID, userID); !ok {
		return
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, err := h.messageRepo.GetChatMessages(c.Request.Context(), chatID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage runs a message through the pipeline: persist,
// broadcast, and for ai_bot chats trigger the assistant reply.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, ok := h.requireMembership(c, chatID, userID); !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.SendMessage(c.Request.Context(), chatID, userID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
			return
		}
		h.emitAudit(c, "ERROR", "failed to store message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// AddParticipant enrolls a user into a chat the caller belongs to.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, ok := h.requireMembership(c, chatID, userID); !ok {
		return
	}

	var req struct {
		UserID  string `json:"userId" binding:"required"`
		IsAdmin bool   `json:"isAdmin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.chatRepo.AddParticipant(c.Request.Context(), chatID, req.UserID, req.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		return
	}

	h.emitAudit(c, "INFO", "Participant added")
	c.JSON(http.StatusCreated, participant)
}

// UpdateMessageStatus advances a message's delivery status. Regressions
// are accepted and ignored so retried acknowledgements stay idempotent.
func (h *ChatHandler) UpdateMessageStatus(c *gin.Context) {
	chatID := c.Param("chat_id")
	messageID := c.Param("message_id")
	userID := c.GetString("userID")

	if _, ok := h.requireMembership(c, chatID, userID); !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.MessageStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	msg, err := h.messageRepo.GetMessageWithSender(c.Request.Context(), messageID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			statusCode = http.StatusNotFound
		}
		c.JSON(statusCode, gin.H{"error": "message not found"})
		return
	}
	if msg.ChatID != chatID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to chat"})
		return
	}

	if err := h.messageRepo.UpdateMessageStatus(c.Request.Context(), messageID, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update status"})
		return
	}

	c.Status(http.StatusNoContent)
}

// StreamAIReply writes assistant reply fragments as a chunked plain
// text response, flushing each fragment as it arrives. An upstream
// failure mid-stream closes the response without fabricating content.
func (h *ChatHandler) StreamAIReply(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, ok := h.requireMembership(c, chatID, userID); !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.pipeline.StreamReply(c.Request.Context(), chatID, req.Content)
	if err != nil {
		statusCode := http.StatusInternalServerError
		msg := "failed to start stream"
		switch {
		case errors.Is(err, repositories.ErrChatNotFound):
			statusCode = http.StatusNotFound
			msg = "chat not found"
		case errors.Is(err, chat.ErrNotAIBotChat):
			statusCode = http.StatusBadRequest
			msg = "chat is not an ai bot chat"
		case errors.Is(err, chat.ErrEmptyContent):
			statusCode = http.StatusBadRequest
			msg = "message content is required"
		}
		c.JSON(statusCode, gin.H{"error": msg})
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Transfer-Encoding", "chunked")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for {
		fragment, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("ai stream for chat %s aborted: %v", chatID, err)
			}
			return
		}
		if _, err := c.Writer.WriteString(fragment); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// requireMembership loads the chat and rejects non-members. It writes
// the error response itself and reports success via the second return.
func (h *ChatHandler) requireMembership(c *gin.Context, chatID, userID string) (models.Chat, bool) {
	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return models.Chat{}, false
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return models.Chat{}, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return models.Chat{}, false
	}

	return chat, true
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
