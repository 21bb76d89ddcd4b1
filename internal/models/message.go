package models

import (
	"errors"
	"fmt"
)

// MessageKind discriminates the message payload.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindVoice MessageKind = "voice"
)

// DeliveryStatus tracks a message through the send pipeline.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
)

// Message represents one chat event stored in the realtime feed.
type Message struct {
	ID             string         `json:"id"` // ULID
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"from"`
	SenderName     string         `json:"from_name,omitempty"`
	Kind           MessageKind    `json:"kind"`
	Text           string         `json:"text,omitempty"`
	AudioURL       string         `json:"audio_url,omitempty"`
	DurationMS     int64          `json:"duration_ms,omitempty"`
	Status         DeliveryStatus `json:"status"`
	Timestamp      int64          `json:"ts"` // Unix ms
}

var (
	ErrEmptyPayload = errors.New("message has neither text nor audio payload")
	ErrDualPayload  = errors.New("message has both text and audio payload")
)

// Validate checks the kind/payload pairing: exactly one of text or
// audio URL must be populated, matching the declared kind.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindText:
		if m.Text == "" {
			return ErrEmptyPayload
		}
		if m.AudioURL != "" {
			return ErrDualPayload
		}
	case KindVoice:
		if m.AudioURL == "" {
			return ErrEmptyPayload
		}
		if m.Text != "" {
			return ErrDualPayload
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}
