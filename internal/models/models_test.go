package models

import (
	"errors"
	"testing"
)

func TestConversationID(t *testing.T) {
	if got := ConversationID("u1", "admin"); got != "u1_admin" {
		t.Fatalf("ConversationID = %q, want %q", got, "u1_admin")
	}
	// same pair, same id
	if ConversationID("u1", "admin") != ConversationID("u1", "admin") {
		t.Fatal("derivation must be deterministic")
	}
	// user side comes first
	if ConversationID("admin", "u1") == ConversationID("u1", "admin") {
		t.Fatal("participant order must matter")
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"text ok", Message{Kind: KindText, Text: "hi"}, nil},
		{"voice ok", Message{Kind: KindVoice, AudioURL: "http://x/a.mp3"}, nil},
		{"text empty", Message{Kind: KindText}, ErrEmptyPayload},
		{"voice empty", Message{Kind: KindVoice}, ErrEmptyPayload},
		{"text with audio", Message{Kind: KindText, Text: "hi", AudioURL: "http://x/a.mp3"}, ErrDualPayload},
		{"voice with text", Message{Kind: KindVoice, Text: "hi", AudioURL: "http://x/a.mp3"}, ErrDualPayload},
	}

	for _, tt := range tests {
		err := tt.msg.Validate()
		if tt.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}

	if err := (&Message{Kind: "video", Text: "x"}).Validate(); err == nil {
		t.Fatal("unknown kind must be rejected")
	}
}

func TestBranchScoped(t *testing.T) {
	if !(&Operator{Role: "branch"}).BranchScoped() {
		t.Fatal("branch role must be scoped")
	}
	if (&Operator{Role: "admin"}).BranchScoped() {
		t.Fatal("admin role must not be scoped")
	}
}
