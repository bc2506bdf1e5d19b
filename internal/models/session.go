package models

import "time"

// Session is an authenticated API session. Address is the wallet identity
// the backend acts for.
type Session struct {
	SessionID    string    `json:"session_id"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}
