package domain

import "time"

// TypingState is the transient "user is typing" marker for one
// (conversation, user) pair. It lives only in memory and dies either on an
// explicit stop or when ExpiresAt passes without a refresh.
type TypingState struct {
	ConversationID ConversationID
	UserID         string
	ExpiresAt      time.Time
}

func (t TypingState) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
