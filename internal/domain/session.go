package domain

import (
	"fmt"
	"time"
)

// Session is a login session. Only the token hash is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ValidateSession validates a Session instance
func ValidateSession(s *Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	if s.UserID == "" {
		return fmt.Errorf("session UserID is required")
	}

	if s.TokenHash == "" {
		return fmt.Errorf("session TokenHash is required")
	}

	if !s.ExpiresAt.After(s.CreatedAt) {
		return fmt.Errorf("session ExpiresAt must be after CreatedAt")
	}

	return nil
}
