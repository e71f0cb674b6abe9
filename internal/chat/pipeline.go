// Package chat implements the message pipeline: ingest, persist,
// broadcast, and the detached AI-reply continuation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"messenger-service/internal/ai"
	"messenger-service/internal/cache"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var (
	ErrEmptyContent = errors.New("message content is required")
	ErrNotAIBotChat = errors.New("chat is not an ai bot chat")
)

// Broadcaster is the fan-out dependency of the pipeline.
type Broadcaster interface {
	Broadcast(chatID string, event models.Event, excludeUserID string)
}

const (
	// historyFetchLimit bounds the window read for AI context; the
	// generator trims it further to its own turn cap.
	historyFetchLimit = 10

	aiReplyTimeout = 60 * time.Second
)

// Pipeline carries a submitted message from validation to delivery and
// optionally spawns the AI-reply continuation.
type Pipeline struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	history     *cache.History
	generator   ai.Generator
	broadcaster Broadcaster
	botUserID   string

	wg sync.WaitGroup
}

// NewPipeline constructs a Pipeline. history may be nil.
func NewPipeline(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	history *cache.History,
	generator ai.Generator,
	broadcaster Broadcaster,
	botUserID string,
) *Pipeline {
	return &Pipeline{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		history:     history,
		generator:   generator,
		broadcaster: broadcaster,
		botUserID:   botUserID,
	}
}

// SendMessage validates, persists and broadcasts a message. The
// returned hydrated record is the source of truth for the sender's own
// client; the broadcast excludes nobody so the sender's other devices
// receive it too. For ai_bot chats a reply continuation is spawned that
// never blocks or fails this call.
func (p *Pipeline) SendMessage(ctx context.Context, chatID, senderID, content string) (models.MessageWithSender, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.MessageWithSender{}, ErrEmptyContent
	}

	chat, err := p.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		return models.MessageWithSender{}, err
	}

	msg, err := p.messageRepo.CreateMessage(ctx, chatID, senderID, content, false)
	if err != nil {
		return models.MessageWithSender{}, fmt.Errorf("store message: %w", err)
	}
	full, err := p.messageRepo.GetMessageWithSender(ctx, msg.ID)
	if err != nil {
		return models.MessageWithSender{}, fmt.Errorf("hydrate message: %w", err)
	}

	p.history.Invalidate(ctx, chatID)

	// Persisted before any delivery attempt: a broadcast failure can
	// never lose data.
	p.broadcaster.Broadcast(chatID, models.NewMessageEvent(full), "")

	if chat.Kind == models.ChatKindAIBot {
		p.wg.Add(1)
		go p.generateReply(chatID, content)
	}

	return full, nil
}

// generateReply runs detached from the triggering request. The reply is
// persisted and broadcast strictly after the human message because this
// goroutine is only spawned once that broadcast has returned. Failures
// here are logged and dropped; the human message already succeeded.
func (p *Pipeline) generateReply(chatID, content string) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), aiReplyTimeout)
	defer cancel()

	history, err := p.recentHistory(ctx, chatID)
	if err != nil {
		log.Printf("ai reply: load history for chat %s: %v", chatID, err)
		return
	}

	reply := p.generator.Generate(ctx, content, history)

	msg, err := p.messageRepo.CreateMessage(ctx, chatID, p.botUserID, reply, true)
	if err != nil {
		log.Printf("ai reply: store for chat %s: %v", chatID, err)
		return
	}
	full, err := p.messageRepo.GetMessageWithSender(ctx, msg.ID)
	if err != nil {
		log.Printf("ai reply: hydrate for chat %s: %v", chatID, err)
		return
	}

	p.history.Invalidate(ctx, chatID)
	p.broadcaster.Broadcast(chatID, models.NewMessageEvent(full), "")
}

// StreamReply returns the lazy fragment stream for an ai_bot chat. The
// human message is not persisted here; callers wanting persistence go
// through SendMessage separately.
func (p *Pipeline) StreamReply(ctx context.Context, chatID, content string) (ai.ReplyStream, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	chat, err := p.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Kind != models.ChatKindAIBot {
		return nil, ErrNotAIBotChat
	}

	history, err := p.recentHistory(ctx, chatID)
	if err != nil {
		return nil, err
	}

	return p.generator.GenerateStream(ctx, content, history)
}

// recentHistory maps the recent message window to ordered role/content
// turns, oldest first, using isFromAi to choose the role.
func (p *Pipeline) recentHistory(ctx context.Context, chatID string) ([]ai.Turn, error) {
	msgs, ok := p.history.Get(ctx, chatID, historyFetchLimit)
	if !ok {
		var err error
		msgs, err = p.messageRepo.GetChatMessages(ctx, chatID, historyFetchLimit)
		if err != nil {
			return nil, err
		}
		p.history.Set(ctx, chatID, historyFetchLimit, msgs)
	}

	if len(msgs) > ai.MaxHistoryTurns {
		msgs = msgs[len(msgs)-ai.MaxHistoryTurns:]
	}

	turns := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := ai.RoleUser
		if m.IsFromAI {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Content})
	}
	return turns, nil
}

// Wait blocks until all in-flight AI continuations finish. Used on
// shutdown and by tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
