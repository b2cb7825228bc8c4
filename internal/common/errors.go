// Package common defines shared constants and sentinel errors used across
// client and server layers of FeedKeeper. Callers should use errors.Is to
// match these values and errors.As to extract the typed variants.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrVersionConflict = errors.New("version conflict")

	// Wire / input validation errors.
	ErrMalformed = errors.New("malformed input")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// StaleError reports an optimistic write whose expected version did not match.
// Version is the current server version the caller must rebase onto.
type StaleError struct {
	ObjectID string
	Version  uint64
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale write for %s: current version %d", e.ObjectID, e.Version)
}

func (e *StaleError) Unwrap() error { return ErrVersionConflict }

// ForbiddenError reports a write to an object owned by another user.
type ForbiddenError struct {
	ObjectID string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("object %s is owned by another user", e.ObjectID)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// MissingError lists the object ids of a batch read that could not be resolved.
type MissingError struct {
	ObjectIDs []string
}

func (e *MissingError) Error() string {
	return "Missing objectIds: " + strings.Join(e.ObjectIDs, ",")
}

func (e *MissingError) Unwrap() error { return ErrorNotFound }

// MalformedError wraps ErrMalformed with a human-readable reason.
func MalformedError(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformed, reason)
}
