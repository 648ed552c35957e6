package core

import (
	"errors"
	"fmt"
)

// Ledger validation and lookup errors. Callers match them with errors.Is.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("concurrent update conflict")
)

// Identity and account-settings errors.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password too short (min 6 characters)")
	ErrPasswordTooLong    = errors.New("password too long (max 72 bytes)")
	ErrPasswordMismatch   = errors.New("new password and confirm password do not match")
	ErrUploadRejected     = errors.New("upload rejected")
)

// FieldError ties a validation error to the input field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Missing returns a FieldError reporting that field was empty.
func Missing(field string) error {
	return &FieldError{Field: field, Err: ErrMissingField}
}

// ErrorKind returns a stable, user-safe label for err, suitable for API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrPasswordMismatch):
		return "invalid_input"
	case errors.Is(err, ErrUploadRejected):
		return "upload_rejected"
	default:
		return "internal"
	}
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	switch ErrorKind(err) {
	case "invalid_amount", "unknown_category", "missing_field", "invalid_date", "invalid_input":
		return true
	}
	return false
}
