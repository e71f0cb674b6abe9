package models

import "testing"

func TestMessageStatusRankOrdering(t *testing.T) {
	if !(MessageStatusSent.Rank() < MessageStatusDelivered.Rank() && MessageStatusDelivered.Rank() < MessageStatusRead.Rank()) {
		t.Fatalf("status ranks out of order: %d %d %d",
			MessageStatusSent.Rank(), MessageStatusDelivered.Rank(), MessageStatusRead.Rank())
	}
	if MessageStatus("bogus").Rank() != 0 {
		t.Fatalf("unknown status must rank below every real status")
	}
}

func TestMessageStatusValid(t *testing.T) {
	for _, status := range []MessageStatus{MessageStatusSent, MessageStatusDelivered, MessageStatusRead} {
		if !status.Valid() {
			t.Fatalf("%s should be valid", status)
		}
	}
	if MessageStatus("archived").Valid() {
		t.Fatalf("archived is not a known status")
	}
}

func TestChatKindValid(t *testing.T) {
	for _, kind := range []ChatKind{ChatKindDirect, ChatKindGroup, ChatKindAIBot} {
		if !kind.Valid() {
			t.Fatalf("%s should be valid", kind)
		}
	}
	if ChatKind("broadcast").Valid() {
		t.Fatalf("broadcast is not a known kind")
	}
}
