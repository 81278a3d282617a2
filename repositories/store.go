// Package repositories implements the durable side of the engine on
// BadgerDB plus a bluge full-text index over message bodies.
//
// Key layout:
//
//	conv:{conversation_id}                      -> Conversation (JSON)
//	msg:{conversation_id}:{ts_padded}:{uuid}    -> Message (JSON)
//	msgid:{uuid}                                -> full msg key (lookup index)
//
// The 19-digit zero-padded UnixNano timestamp makes the default key order
// chronological; the trailing UUID disambiguates same-nanosecond writes.
package repositories

import (
	"fmt"
	"log/slog"

	"duplex/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const maxTxnRetries = 5

type Store struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) *Store {
	return &Store{db: db, log: log, limitMessages: limitMessages}
}

func conversationKey(id domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("conv:%s", id))
}

func messageKey(conversationID domain.ConversationID, m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, m.CreatedAt.UnixNano(), m.ID))
}

func messagePrefix(conversationID domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s", id))
}

// update runs fn in a read-write transaction, retrying on badger's
// optimistic-concurrency conflict. Concurrent receipt appends on the same
// message hit this path routinely.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
		s.log.Debug("Retrying conflicting transaction", "attempt", attempt+1)
	}
	return err
}
