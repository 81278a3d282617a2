package repositories

import (
	"context"
	"log/slog"

	"duplex/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const searchPageSize = 20

// SearchHit is one full-text match from the message index.
type SearchHit struct {
	MessageID      uuid.UUID
	ConversationID domain.ConversationID
	SenderID       string
	Content        string
}

// MessageIndex is the bluge full-text index over message bodies. It is fed
// best-effort by the ingestion pipeline and queried by the inspect tool;
// the badger store stays the source of truth.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index upserts one message document. Re-indexing the same message id
// replaces the previous document.
func (i *MessageIndex) Index(m domain.Message) error {
	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewKeywordField("conversation", string(m.ConversationID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", m.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", m.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("at", m.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

// SearchPaginated runs a full-text query scoped to one conversation.
// Returns the page of hits and the total match count. An empty query
// matches nothing.
func (i *MessageIndex) SearchPaginated(ctx context.Context, query string,
	conversationID domain.ConversationID, page int) ([]SearchHit, uint64, error) {
	if query == "" {
		return nil, 0, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewTermQuery(string(conversationID)).SetField("conversation"))

	req := bluge.NewTopNSearch(searchPageSize, q).
		SetFrom(page * searchPageSize).
		WithStandardAggregations()

	dmi, err := reader.Search(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	var hits []SearchHit
	match, err := dmi.Next()
	for err == nil && match != nil {
		var hit SearchHit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "conversation":
				hit.ConversationID = domain.ConversationID(value)
			case "sender":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		hits = append(hits, hit)
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}
	return hits, dmi.Aggregations().Count(), nil
}
