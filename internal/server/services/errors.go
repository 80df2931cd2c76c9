package services

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrDuplicatePasskey = errors.New("passkey already in use")
)

// ValidationError is rejected request input. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
