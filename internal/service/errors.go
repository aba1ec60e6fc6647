package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput marks a request that is malformed or out of range. The
	// message is safe to show to the caller.
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrUnauthorized means no acting user could be attributed to the change.
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	// ErrTransaction wraps storage failures. The cause is logged, never shown.
	ErrTransaction = errors.New("transaction failed")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// isDomainError reports whether err already carries a caller-facing category.
func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrConflict)
}

// parseProductID rejects a missing id as invalid input. An id that is not a
// UUID cannot name any product, so it is reported as not found.
func parseProductID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, invalidInput("productId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, notFound("product %q not found", raw)
	}
	return id, nil
}

// parseActor returns nil for an empty or malformed actor id.
func parseActor(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
