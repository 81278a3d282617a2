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
	"github.com/samber/lo"
)

// CreateMessage persists a message under its chronological key and writes
// the msgid index entry pointing back at it, in one transaction.
func (s *Store) CreateMessage(_ context.Context, m domain.Message) error {
	key := messageKey(m.ConversationID, m)
	bytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(messageIDKey(m.ID), key)
	})
}

func (s *Store) FindMessage(_ context.Context, id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return s.loadMessage(txn, id, &m)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// loadMessage resolves a message id through the msgid index inside txn.
func (s *Store) loadMessage(txn *badger.Txn, id uuid.UUID, out *domain.Message) error {
	idxItem, err := txn.Get(messageIDKey(id))
	if err == badger.ErrKeyNotFound {
		return errors.ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	var key []byte
	if err := idxItem.Value(func(value []byte) error {
		key = append([]byte(nil), value...)
		return nil
	}); err != nil {
		return err
	}
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		// Index points at a vanished record
		return errors.ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(value []byte) error {
		return json.Unmarshal(value, out)
	})
}

// MessagesFor retrieves the backlog of a conversation, newest first, using
// a reverse prefix scan. Thanks to the padded timestamp in the key the scan
// order is the time order. Soft-deleted messages are skipped. It stops once
// the configured limitMessages is reached and returns the cursor to resume
// from.
func (s *Store) MessagesFor(_ context.Context, conversationID domain.ConversationID,
	cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		prefixLen := len(prefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		default:
			seekKey = append(append([]byte(nil), prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(messages) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *s.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			var m domain.Message
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &m)
			}); err != nil {
				return err
			}
			if m.IsDeleted {
				continue
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, lo.ToPtr(lastKey), nil
}

// AppendDelivered records a delivery receipt. Returns false when the
// receipt already existed; the stored set never holds two entries for the
// same user.
func (s *Store) AppendDelivered(_ context.Context, messageID uuid.UUID, userID string, at time.Time) (bool, error) {
	return s.appendReceipt(messageID, func(m *domain.Message) bool {
		return m.MarkDelivered(userID, at)
	})
}

// AppendRead records a read receipt, same idempotency contract as
// AppendDelivered.
func (s *Store) AppendRead(_ context.Context, messageID uuid.UUID, userID string, at time.Time) (bool, error) {
	return s.appendReceipt(messageID, func(m *domain.Message) bool {
		return m.MarkRead(userID, at)
	})
}

func (s *Store) appendReceipt(messageID uuid.UUID, mark func(*domain.Message) bool) (bool, error) {
	var appended bool
	err := s.update(func(txn *badger.Txn) error {
		appended = false
		var m domain.Message
		if err := s.loadMessage(txn, messageID, &m); err != nil {
			return err
		}
		if !mark(&m) {
			return nil
		}
		bytes, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(m.ConversationID, m), bytes); err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return appended, nil
}

// MarkAllRead stamps a read receipt on every unread message of the
// conversation not sent by userID. Soft-deleted messages are skipped.
// Returns how many receipts were actually appended.
func (s *Store) MarkAllRead(_ context.Context, conversationID domain.ConversationID,
	userID string, at time.Time) (int, error) {
	var marked int
	err := s.update(func(txn *badger.Txn) error {
		marked = 0
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var m domain.Message
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &m)
			}); err != nil {
				return err
			}
			if m.IsDeleted || m.SenderID == userID || !m.MarkRead(userID, at) {
				continue
			}
			bytes, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := txn.Set(append([]byte(nil), item.Key()...), bytes); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
