package runtime

import (
	"context"
	"testing"
	"time"

	"duplex/domain"
	"duplex/domain/event"

	"github.com/stretchr/testify/require"
)

func (f *engineFixture) seedMessage(t *testing.T, conversationID domain.ConversationID,
	senderID, content string) domain.Message {
	t.Helper()
	msg, err := domain.NewMessage(conversationID, senderID, content, domain.TypeText, nil, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.store.CreateMessage(context.Background(), msg))
	return msg
}

func TestReceiptEngine_FirstReadBroadcastsOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")
	msg := f.seedMessage(t, "conv-1", "alice", "Hello Bob")

	alice := f.connect(ctx, "alice", "conn-a")
	f.rooms.Join("conv-1", "conn-a")

	// When bob reads the message twice
	req.NoError(f.receipts.MarkRead(ctx, msg.ID, "bob"))
	req.NoError(f.receipts.MarkRead(ctx, msg.ID, "bob"))

	// Then exactly one message-read reaches the room
	reads := alice.Named("message-read")
	req.Len(reads, 1)
	read := reads[0].(event.MessageRead)
	req.Equal(msg.ID, read.MessageID)
	req.Equal("bob", read.UserID)

	// And the stored set holds a single receipt
	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Len(stored.ReadBy, 1)
}

func TestReceiptEngine_ReadDoesNotRequireDelivered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")
	msg := f.seedMessage(t, "conv-1", "alice", "Hello Bob")

	// When bob reads without any delivery record
	req.NoError(f.receipts.MarkRead(ctx, msg.ID, "bob"))

	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.True(stored.IsReadBy("bob"))
	req.False(stored.IsDeliveredTo("bob"))
}

func TestReceiptEngine_MarkDeliveredIsIdempotentAndSilent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")
	msg := f.seedMessage(t, "conv-1", "alice", "Hello Bob")

	alice := f.connect(ctx, "alice", "conn-a")
	f.rooms.Join("conv-1", "conn-a")

	req.NoError(f.receipts.MarkDelivered(ctx, msg.ID, "bob"))
	req.NoError(f.receipts.MarkDelivered(ctx, msg.ID, "bob"))

	// Then no broadcast happens and one receipt is stored
	req.Empty(alice.Events())
	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Len(stored.DeliveredTo, 1)
	req.Equal(uint64(1), f.stats.GetLatest().ReceiptsDelivered)
}

func TestReceiptEngine_MarkUnknownMessageFails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)

	msg, err := domain.NewMessage("conv-1", "alice", "never stored", domain.TypeText, nil, time.Now().UTC())
	req.NoError(err)

	req.Error(f.receipts.MarkRead(ctx, msg.ID, "bob"))
	req.Error(f.receipts.MarkDelivered(ctx, msg.ID, "bob"))
}

func TestReceiptEngine_MarkAllReadSkipsOwnAndDeletedWithoutBroadcasts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	fromAlice := f.seedMessage(t, "conv-1", "alice", "First")
	f.seedMessage(t, "conv-1", "bob", "Bob's own message")
	alreadyRead := f.seedMessage(t, "conv-1", "alice", "Second")
	req.NoError(f.receipts.MarkRead(ctx, alreadyRead.ID, "bob"))

	deleted, err := domain.NewMessage("conv-1", "alice", "To be removed", domain.TypeText, nil, time.Now().UTC())
	req.NoError(err)
	deleted.SoftDelete(time.Now().UTC())
	req.NoError(f.store.CreateMessage(ctx, deleted))

	alice := f.connect(ctx, "alice", "conn-a")
	f.rooms.Join("conv-1", "conn-a")

	// When bob opens the conversation
	count, err := f.receipts.MarkAllRead(ctx, "conv-1", "bob")

	// Then only the one unread foreign message gets a receipt
	req.NoError(err)
	req.Equal(1, count)
	req.Empty(alice.Named("message-read"))

	stored, err := f.store.FindMessage(ctx, fromAlice.ID)
	req.NoError(err)
	req.True(stored.IsReadBy("bob"))
}
