package domain

import (
	"fmt"
	"time"
)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt, never plaintext
	CreatedAt    time.Time
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if u.Username == "" {
		return fmt.Errorf("user Username is required")
	}

	if len(u.Username) > 64 {
		return fmt.Errorf("user Username must be 64 characters or less")
	}

	if u.PasswordHash == "" {
		return fmt.Errorf("user PasswordHash is required")
	}

	return nil
}
