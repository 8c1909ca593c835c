package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when a caller mutates a task owned by someone else.
var ErrForbidden = errors.New("task belongs to another user")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
