// Package apperror defines the error taxonomy shared by every mutation handler.
// Errors of these kinds are handled at the socket boundary and never crash the process.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the wire.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindAlreadyVoted      Kind = "ALREADY_VOTED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrAlreadyVoted      = &Error{Kind: KindAlreadyVoted}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Error is a classified mutation error.
type Error struct {
	Kind              Kind
	Message           string
	Field             string
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
// An AlreadyVoted error is also an InvalidTransition.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindAlreadyVoted && t.Kind == KindInvalidTransition
}

// Validation returns a validation error for a field.
func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimited returns a rate-limit rejection.
func RateLimited(action string, retryAfterSeconds int) *Error {
	return &Error{
		Kind:              KindRateLimited,
		Message:           fmt.Sprintf("too many %s requests", action),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// InvalidTransition returns a state-machine guard failure.
func InvalidTransition(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// AlreadyVoted is returned when a voter may not vote again.
func AlreadyVoted(pollID string) *Error {
	return &Error{Kind: KindAlreadyVoted, Message: "already voted on poll " + pollID}
}

// Unauthorized returns a role or credential failure.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an unknown-entity error.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// Internal wraps an unexpected failure.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// From extracts the *Error from err, classifying anything else as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error"}
}

// Payload is the body of an `error` socket event.
type Payload struct {
	Code              Kind   `json:"code"`
	Message           string `json:"message"`
	Field             string `json:"field,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	Event             string `json:"event,omitempty"`
}

// ToPayload converts err to its wire form for the originating event.
func ToPayload(event string, err error) Payload {
	e := From(err)
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	return Payload{
		Code:              e.Kind,
		Message:           msg,
		Field:             e.Field,
		RetryAfterSeconds: e.RetryAfterSeconds,
		Event:             event,
	}
}
