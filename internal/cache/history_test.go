package cache

import (
	"context"
	"testing"

	"messenger-service/internal/models"
)

func TestNilHistoryIsAlwaysMiss(t *testing.T) {
	var history *History
	ctx := context.Background()

	if _, ok := history.Get(ctx, "c1", 10); ok {
		t.Fatalf("nil cache must miss")
	}
	// No-ops, must not panic.
	history.Set(ctx, "c1", 10, []models.MessageWithSender{})
	history.Invalidate(ctx, "c1")
}

func TestHistoryWithoutClientIsAlwaysMiss(t *testing.T) {
	history := NewHistory(nil, 0)
	ctx := context.Background()

	history.Set(ctx, "c1", 10, []models.MessageWithSender{})
	if _, ok := history.Get(ctx, "c1", 10); ok {
		t.Fatalf("cache without a client must miss")
	}
	history.Invalidate(ctx, "c1")
}

func TestHistoryKeyShape(t *testing.T) {
	if got := historyKey("c1", 10); got != "history:c1:10" {
		t.Fatalf("unexpected key: %s", got)
	}
}
