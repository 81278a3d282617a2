// Package domain contains core concepts of the messaging system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"duplex/errors"

	"github.com/google/uuid"
)

type ConversationID string

// ConnectionID identifies one live transport session. It only exists
// between connect and disconnect and is never persisted.
type ConnectionID string

// Conversation is a private exchange between exactly two users.
type Conversation struct {
	ID           ConversationID `json:"conversationId"`
	Participants []string       `json:"participantIds"`
	LastMessage  *uuid.UUID     `json:"lastMessage,omitempty"`
	LastActivity time.Time      `json:"lastActivity"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewPrivateConversation builds a two-party conversation.
// The exactly-2-distinct-participants invariant is enforced here and again
// at the persistence boundary, so the sync engine never observes a
// malformed conversation.
func NewPrivateConversation(id ConversationID, userA, userB string, at time.Time) (Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return Conversation{}, errors.ErrNotPrivatePair
	}
	return Conversation{
		ID:           id,
		Participants: []string{userA, userB},
		LastActivity: at,
		CreatedAt:    at,
	}, nil
}

func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c Conversation) OtherParticipants(userID string) []string {
	var others []string
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}
