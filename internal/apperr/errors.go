package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	InvalidPayload     Kind = "InvalidPayload"
	InvalidZone        Kind = "InvalidZone"
	InvalidDate        Kind = "InvalidDate"
	InvalidYear        Kind = "InvalidYear"
	InvalidMonth       Kind = "InvalidMonth"
	StorageUnavailable Kind = "StorageUnavailable"
	NotFound           Kind = "NotFound"
	Internal           Kind = "Internal"
)

// Error carries a stable kind and a message safe to show to callers.
// Err holds the underlying cause and is only exposed in debug mode.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or Internal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Unavailable wraps a storage failure.
func Unavailable(err error) *Error {
	return Wrap(StorageUnavailable, "storage unavailable", err)
}
