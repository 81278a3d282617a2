package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"duplex/domain"
	"duplex/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// CreateConversation persists a private conversation. The exactly-two
// distinct participants invariant is re-checked here so a malformed record
// can never enter the store, whatever constructed it.
func (s *Store) CreateConversation(_ context.Context, c domain.Conversation) error {
	if len(c.Participants) != 2 || c.Participants[0] == c.Participants[1] ||
		c.Participants[0] == "" || c.Participants[1] == "" {
		return errors.ErrNotPrivatePair
	}
	bytes, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(c.ID), bytes)
	})
}

func (s *Store) FindConversation(_ context.Context, id domain.ConversationID) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &c)
		})
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

func (s *Store) IsParticipant(ctx context.Context, id domain.ConversationID, userID string) (bool, error) {
	c, err := s.FindConversation(ctx, id)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(userID), nil
}

// TouchConversationActivity bumps lastMessage/lastActivity after a
// successful ingestion. Bumps for out-of-order writes are last-writer-wins;
// the message log itself stays ordered by key.
func (s *Store) TouchConversationActivity(_ context.Context, id domain.ConversationID,
	messageID uuid.UUID, at time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		var c domain.Conversation
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &c)
		}); err != nil {
			return err
		}
		c.LastMessage = &messageID
		c.LastActivity = at
		bytes, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode conversation: %w", err)
		}
		return txn.Set(conversationKey(id), bytes)
	})
}
