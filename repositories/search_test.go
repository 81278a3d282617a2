package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"duplex/domain"

	"github.com/blugelabs/bluge"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, logs.GetLoggerFromLevel(slog.LevelError))
}

func indexedMessage(t *testing.T, index *MessageIndex,
	conversationID domain.ConversationID, senderID, content string) domain.Message {
	t.Helper()
	msg, err := domain.NewMessage(conversationID, senderID, content, domain.TypeText, nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, index.Index(msg))
	return msg
}

func TestMessageIndex_SearchScopedToConversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	// Given matching content in two conversations
	hit := indexedMessage(t, index, "conv-1", "alice", "We should migrate the database")
	indexedMessage(t, index, "conv-1", "bob", "Frontend refactoring first")
	indexedMessage(t, index, "conv-2", "carol", "Another database discussion")

	// When searching inside conv-1
	hits, total, err := index.SearchPaginated(ctx, "database", "conv-1", 0)

	// Then only the conv-1 match comes back
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(hit.ID, hits[0].MessageID)
	req.Equal("alice", hits[0].SenderID)
}

func TestMessageIndex_EmptyQueryMatchesNothing(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	indexedMessage(t, index, "conv-1", "alice", "Some content")

	hits, total, err := index.SearchPaginated(context.Background(), "", "conv-1", 0)

	req.NoError(err)
	req.Zero(total)
	req.Empty(hits)
}

func TestMessageIndex_ReindexReplacesDocument(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := newTestIndex(t)

	msg := indexedMessage(t, index, "conv-1", "alice", "original wording")
	msg.Edit("updated wording", time.Now().UTC())
	req.NoError(index.Index(msg))

	_, total, err := index.SearchPaginated(ctx, "original", "conv-1", 0)
	req.NoError(err)
	req.Zero(total)

	hits, total, err := index.SearchPaginated(ctx, "updated", "conv-1", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Equal("updated wording", hits[0].Content)
}
