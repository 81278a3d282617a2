package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrAuthFailure          = fmt.Errorf("authentication failed")
	ErrNotAMember           = fmt.Errorf("not a participant of this conversation")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrNotPrivatePair       = fmt.Errorf("private conversations must have exactly 2 distinct participants")
	ErrEmptyContent         = fmt.Errorf("message content is required")
	ErrContentTooLong       = fmt.Errorf("message content exceeds the maximum length")
	ErrInvalidPayload       = fmt.Errorf("invalid event payload")
	ErrUnknownEvent         = fmt.Errorf("unknown event")
)

// MapToClient converts an internal error into the payload of an outbound
// `error` event. Anything outside the known taxonomy is reported as a
// generic failure so internals never leak to clients.
//
// NotAMember is deliberately reported as "Conversation not found": a
// non-participant must not be able to probe which conversation ids exist.
func MapToClient(err error) string {
	switch {
	case stderrors.Is(err, ErrAuthFailure):
		return "Authentication failed"
	case stderrors.Is(err, ErrNotAMember),
		stderrors.Is(err, ErrConversationNotFound):
		return "Conversation not found"
	case stderrors.Is(err, ErrMessageNotFound):
		return "Message not found"
	case stderrors.Is(err, ErrEmptyContent), stderrors.Is(err, ErrContentTooLong),
		stderrors.Is(err, ErrInvalidPayload):
		return "Invalid message content"
	case stderrors.Is(err, ErrUnknownEvent):
		return "Unsupported event"
	default:
		return "Failed to process request"
	}
}
