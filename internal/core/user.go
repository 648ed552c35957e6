package core

import (
	"net/mail"
	"strings"
	"time"
)

const MinPasswordLen = 6

// MaxPasswordLen is the longest password bcrypt can hash.
const MaxPasswordLen = 72

// User is an account holder. ID doubles as the ledger account ID.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateEmail checks that s is a bare address.
func ValidateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return Missing("email")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != strings.TrimSpace(s) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(p string) error {
	if p == "" {
		return Missing("password")
	}
	if len(p) < MinPasswordLen {
		return ErrWeakPassword
	}
	if len(p) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}
