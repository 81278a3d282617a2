// Package event defines the closed sets of events exchanged with clients.
// Adding a variant is a compile-time-checked change: every dispatch site
// switches over the concrete types, never over raw strings.
package event

import (
	"encoding/json"
	"time"

	"duplex/domain"

	"github.com/google/uuid"
)

// ServerEvent is the closed set of outbound events.
type ServerEvent interface {
	// Name is the wire identifier placed in the envelope.
	Name() string
}

type NewMessage struct {
	Message domain.Message `json:"message"`
}

func (NewMessage) Name() string { return "new-message" }

type UserOnline struct {
	UserID string `json:"userId"`
}

func (UserOnline) Name() string { return "user-online" }

type UserOffline struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserOffline) Name() string { return "user-offline" }

type UserTyping struct {
	UserID         string                `json:"userId"`
	ConversationID domain.ConversationID `json:"conversationId"`
}

func (UserTyping) Name() string { return "user-typing" }

type UserStopTyping struct {
	UserID         string                `json:"userId"`
	ConversationID domain.ConversationID `json:"conversationId"`
}

func (UserStopTyping) Name() string { return "user-stop-typing" }

type MessageRead struct {
	MessageID      uuid.UUID             `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	UserID         string                `json:"userId"`
	ReadAt         time.Time             `json:"readAt"`
}

func (MessageRead) Name() string { return "message-read" }

// Problem reports a failed operation back to the connection that caused it.
type Problem struct {
	Message string `json:"message"`
}

func (Problem) Name() string { return "error" }

// envelope is the wire frame: {"event": "...", "payload": {...}}.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps a server event into its wire envelope.
func Encode(ev ServerEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: ev.Name(), Payload: payload})
}
