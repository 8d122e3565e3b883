package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller input that can never succeed as sent.
	ErrValidation = errors.New("validation failed")

	ErrNotFound          = errors.New("not found")
	ErrToolNotFound      = fmt.Errorf("tool %w", ErrNotFound)
	ErrInventoryNotFound = fmt.Errorf("inventory %w", ErrNotFound)
	ErrTrayNotFound      = fmt.Errorf("tray %w", ErrNotFound)
	ErrStationNotFound   = fmt.Errorf("station %w", ErrNotFound)
	ErrUnitNotFound      = fmt.Errorf("unit %w", ErrNotFound)

	// ErrNegativeResult is returned when a ledger delta would drive any
	// counter below zero. Nothing is written.
	ErrNegativeResult = errors.New("delta would make a counter negative")

	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAssignmentBelowOutstanding rejects shrinking an assignment below
	// the units that are currently issued or damaged.
	ErrAssignmentBelowOutstanding = errors.New("assignment below issued and damaged quantity")
)

// FieldError is a validation failure on one input field. It matches
// ErrValidation with errors.Is.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
