package domain

import "time"

// UserPresence is the live view of one user's connectivity.
// A user is online as long as at least one connection is live; lastSeen is
// only meaningful once the last connection has closed.
type UserPresence struct {
	UserID        string         `json:"userId"`
	Online        bool           `json:"online"`
	LastSeen      time.Time      `json:"lastSeen"`
	ConnectionIDs []ConnectionID `json:"-"`
}
