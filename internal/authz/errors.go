package authz

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes authorization errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the resource is not registered.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUnauthorized indicates the actor may not perform the change.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeInvalidLevel indicates an access level outside None..Manage.
	ErrCodeInvalidLevel ErrorCode = "INVALID_LEVEL"
)

// Error is a recoverable authorization failure.
type Error struct {
	Code     ErrorCode
	Message  string
	Actor    string
	Resource string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (resource=%s)", e.Code, e.Message, e.Resource)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsNotFound returns true if err reports an unknown resource.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsUnauthorized returns true if err reports a forbidden change.
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsInvalidLevel returns true if err reports an invalid access level.
func IsInvalidLevel(err error) bool { return hasCode(err, ErrCodeInvalidLevel) }

func notFound(resource string) error {
	return &Error{Code: ErrCodeNotFound, Message: "resource does not exist", Resource: resource}
}

func unauthorized(actor, resource, msg string) error {
	return &Error{Code: ErrCodeUnauthorized, Message: msg, Actor: actor, Resource: resource}
}
