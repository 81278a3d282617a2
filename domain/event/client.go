package event

import (
	"encoding/json"
	"fmt"

	"duplex/domain"
	"duplex/errors"
)

// ClientEvent is the closed set of inbound events a connection may produce.
// connect and disconnect are transport-level and handled outside this set.
type ClientEvent interface {
	clientEvent()
}

type JoinConversation struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type LeaveConversation struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type SendMessage struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Content        string                `json:"content"`
	Type           domain.MessageType    `json:"type,omitempty"`
	FileURL        string                `json:"fileUrl,omitempty"`
	FileName       string                `json:"fileName,omitempty"`
	FileSize       int64                 `json:"fileSize,omitempty"`
}

type TypingStart struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type TypingStop struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type MarkRead struct {
	MessageID string `json:"messageId"`
}

func (JoinConversation) clientEvent()  {}
func (LeaveConversation) clientEvent() {}
func (SendMessage) clientEvent()       {}
func (TypingStart) clientEvent()       {}
func (TypingStop) clientEvent()        {}
func (MarkRead) clientEvent()          {}

// Decode parses one inbound frame into its typed variant.
// Unknown event names are rejected so the dispatch set stays closed.
func Decode(data []byte) (ClientEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(env.Payload) == 0 {
		env.Payload = []byte("{}")
	}

	var (
		ev  ClientEvent
		err error
	)
	switch env.Event {
	case "join-conversation":
		var e JoinConversation
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "leave-conversation":
		var e LeaveConversation
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "send-message":
		var e SendMessage
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "typing-start":
		var e TypingStart
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "typing-stop":
		var e TypingStop
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case "mark-read":
		var e MarkRead
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed %q payload: %w", env.Event, err)
	}
	return ev, nil
}
