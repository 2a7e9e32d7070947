package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes coordinator errors.
type ErrorCode string

const (
	// ErrCodeStoreWriteFailed indicates the primary store rejected a write.
	ErrCodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"

	// ErrCodeLogAppendFailed indicates the transaction log append failed.
	ErrCodeLogAppendFailed ErrorCode = "LOG_APPEND_FAILED"

	// ErrCodeTooManyFacts indicates a read matched more facts than allowed.
	ErrCodeTooManyFacts ErrorCode = "TOO_MANY_FACTS"
)

// StoreError reports a failed primary-store write. Nothing was logged or
// indexed for the commit.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeStoreWriteFailed, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LogError reports a failed log append. The store write was compensated.
type LogError struct {
	Err error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCodeLogAppendFailed, e.Err)
}

func (e *LogError) Unwrap() error { return e.Err }

// LimitError reports a read that matched more than Limit facts.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: query matches more than %d facts", ErrCodeTooManyFacts, e.Limit)
}

// IsStoreError returns true if err is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsLogError returns true if err is a LogError.
func IsLogError(err error) bool {
	var le *LogError
	return errors.As(err, &le)
}

// IsLimitError returns true if err is a LimitError.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}
