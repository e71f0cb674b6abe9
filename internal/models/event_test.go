package models

import (
	"encoding/json"
	"testing"
)

func TestDecodeEventKnownTypes(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"type":"join_chat","userId":"u1","chatId":"c1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !evt.Known() || evt.UserID != "u1" || evt.ChatID != "c1" {
		t.Fatalf("unexpected event: %+v", evt)
	}

	evt, err = DecodeEvent([]byte(`{"type":"typing","userId":"u1","chatId":"c1","isTyping":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !evt.IsTyping {
		t.Fatalf("isTyping flag lost in decode")
	}
}

func TestDecodeEventUnknownTypeIsNotAnError(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"type":"ping","extra":"ignored"}`))
	if err != nil {
		t.Fatalf("unknown type must decode cleanly: %v", err)
	}
	if evt.Known() {
		t.Fatalf("ping should not be a recognized type")
	}
}

func TestDecodeEventMalformedFrame(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":`)); err == nil {
		t.Fatalf("malformed frame must be an error")
	}
}

func TestEnvelopeFieldNames(t *testing.T) {
	data, err := json.Marshal(UserTypingEvent("u1", true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "user_typing" || raw["userId"] != "u1" || raw["isTyping"] != true {
		t.Fatalf("unexpected wire shape: %v", raw)
	}
}
