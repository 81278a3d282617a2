package domain

import (
	"strings"
	"time"

	"duplex/errors"

	"github.com/google/uuid"
)

// MaxContentLength mirrors the storage-side cap on message bodies.
const MaxContentLength = 1000

// DeletedPlaceholder replaces the body of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

type MessageType string

const (
	TypeText   MessageType = "text"
	TypeImage  MessageType = "image"
	TypeFile   MessageType = "file"
	TypeSystem MessageType = "system"
)

// Receipt records that one user delivered or read a message at a point in time.
type Receipt struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// Attachment carries file metadata for image/file messages.
// The bytes themselves never cross the sync engine; clients upload elsewhere
// and only the reference travels with the message.
type Attachment struct {
	URL  string `json:"fileUrl"`
	Name string `json:"fileName,omitempty"`
	Size int64  `json:"fileSize,omitempty"`
}

// Message is one chat event inside a conversation.
//
// DeliveredTo and ReadBy are append-only: an entry for a given user, once
// present, is never removed, and a user appears at most once per set.
type Message struct {
	ID             uuid.UUID      `json:"messageId"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	Attachment     *Attachment    `json:"attachment,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	IsEdited       bool           `json:"isEdited"`
	EditedAt       *time.Time     `json:"editedAt,omitempty"`
	IsDeleted      bool           `json:"isDeleted"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty"`
	DeliveredTo    []Receipt      `json:"deliveredTo"`
	ReadBy         []Receipt      `json:"readBy"`
}

// NewMessage validates and builds an immutable message ready for persistence.
func NewMessage(conversationID ConversationID, senderID, content string,
	msgType MessageType, attachment *Attachment, at time.Time) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, errors.ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return Message{}, errors.ErrContentTooLong
	}
	if msgType == "" {
		msgType = TypeText
	}
	return Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Attachment:     attachment,
		CreatedAt:      at,
	}, nil
}

func (m Message) IsDeliveredTo(userID string) bool {
	for _, r := range m.DeliveredTo {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (m Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkDelivered appends a delivery receipt for userID.
// Returns false without mutating anything if one already exists.
func (m *Message) MarkDelivered(userID string, at time.Time) bool {
	if m.IsDeliveredTo(userID) {
		return false
	}
	m.DeliveredTo = append(m.DeliveredTo, Receipt{UserID: userID, At: at})
	return true
}

// MarkRead appends a read receipt for userID.
// Returns false without mutating anything if one already exists.
// A read receipt does not require a prior delivery receipt.
func (m *Message) MarkRead(userID string, at time.Time) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, Receipt{UserID: userID, At: at})
	return true
}

// Edit replaces the content and stamps the edit marker.
func (m *Message) Edit(content string, at time.Time) {
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
}

// SoftDelete blanks the content but keeps the record and its receipts.
func (m *Message) SoftDelete(at time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &at
	m.Content = DeletedPlaceholder
}
