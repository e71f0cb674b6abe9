package ai

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"messenger-service/internal/observability"
)

// Turn is one entry of the bounded conversation history, oldest first.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxHistoryTurns caps the history sent upstream to keep request size
// and latency predictable.
const MaxHistoryTurns = 5

// ApologyReply is returned as the reply content whenever generation
// fails. An upstream outage degrades the bot, never the chat.
const ApologyReply = "Sorry, something went wrong while processing your message. Please try again."

// ReplyStream yields reply fragments in arrival order. Recv returns
// io.EOF on normal completion and the upstream error after partial
// output; fragments already yielded are never retracted.
type ReplyStream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces replies to user messages given bounded history.
type Generator interface {
	Generate(ctx context.Context, message string, history []Turn) string
	GenerateStream(ctx context.Context, message string, history []Turn) (ReplyStream, error)
}

// ReplyGenerator wraps the chat-completion service.
type ReplyGenerator struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

// NewReplyGenerator constructs a generator. baseURL is optional and
// points at an OpenAI-compatible endpoint; the API key comes from the
// environment.
func NewReplyGenerator(baseURL, model, systemPrompt string) *ReplyGenerator {
	var options []option.RequestOption
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Printf("ai: OPENAI_API_KEY is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &ReplyGenerator{client: &client, model: model, systemPrompt: systemPrompt}
}

func (g *ReplyGenerator) params(message string, history []Turn) openai.ChatCompletionNewParams {
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(g.systemPrompt))
	for _, turn := range history {
		if turn.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	return openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    g.model,
	}
}

// Generate produces a full reply. It fails closed: any service error
// becomes the fixed apology string rather than propagating.
func (g *ReplyGenerator) Generate(ctx context.Context, message string, history []Turn) string {
	resp, err := g.client.Chat.Completions.New(ctx, g.params(message, history))
	if err != nil {
		log.Printf("ai: generation failed: %v", err)
		observability.IncAIGeneration("chat", "error")
		return ApologyReply
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Printf("ai: generation returned no content")
		observability.IncAIGeneration("chat", "empty")
		return ApologyReply
	}

	observability.IncAIGeneration("chat", "ok")
	return resp.Choices[0].Message.Content
}

// GenerateStream produces a lazy, finite, non-restartable fragment
// sequence. The caller must Close it on both completion and error.
func (g *ReplyGenerator) GenerateStream(ctx context.Context, message string, history []Turn) (ReplyStream, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.params(message, history))
	return &replyStream{stream: stream}, nil
}

type replyStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *replyStream) Recv() (string, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		observability.IncAIGeneration("stream", "error")
		return "", err
	}
	observability.IncAIGeneration("stream", "ok")
	return "", io.EOF
}

func (s *replyStream) Close() error {
	return s.stream.Close()
}
