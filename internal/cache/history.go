// Package cache provides a Redis-backed cache-aside layer for recent
// chat history, used to keep the AI context fetch off the hot path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"messenger-service/internal/models"
)

// History caches the recent-message window per chat. A nil *History is
// a valid always-miss cache, so Redis stays optional.
type History struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHistory creates the cache. ttl <= 0 falls back to one minute; the
// window is invalidated on every new message anyway, so the TTL only
// bounds staleness after missed invalidations.
func NewHistory(client *redis.Client, ttl time.Duration) *History {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &History{client: client, ttl: ttl}
}

func historyKey(chatID string, limit int) string {
	return fmt.Sprintf("history:%s:%d", chatID, limit)
}

// Get retrieves a cached window. Returns false on miss or any error;
// cache trouble must never fail the caller.
func (c *History) Get(ctx context.Context, chatID string, limit int) ([]models.MessageWithSender, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, historyKey(chatID, limit)).Bytes()
	if err != nil {
		return nil, false
	}

	var msgs []models.MessageWithSender
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

// Set stores a window.
func (c *History) Set(ctx context.Context, chatID string, limit int, msgs []models.MessageWithSender) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	c.client.Set(ctx, historyKey(chatID, limit), data, c.ttl)
}

// Invalidate drops every cached window for the chat.
func (c *History) Invalidate(ctx context.Context, chatID string) {
	if c == nil || c.client == nil {
		return
	}

	pattern := historyKey(chatID, 0)
	pattern = pattern[:len(pattern)-1] + "*"

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			c.client.Del(ctx, keys...)
		}
		cursor = nextCursor
		if cursor == 0 {
			return
		}
	}
}
