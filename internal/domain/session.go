package domain

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one history entry. Parts hold cipher tokens, never plaintext.
type Turn struct {
	Role  Role     `json:"role"`
	Parts []string `json:"parts"`
}

// Session is the per-chat pointer to one uploaded resource.
// ResourceRef is a cipher token of the provider handle.
type Session struct {
	ChatID      int64
	ResourceRef string
	MimeType    string
	History     []Turn
	UpdatedAt   time.Time
}

// IsIdle reports whether the session went unused for longer than timeout.
func (s *Session) IsIdle(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > timeout
}

// Message is a decrypted history turn handed to the AI client.
type Message struct {
	Role  Role
	Parts []string
}
