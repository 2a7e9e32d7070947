package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/engine"
	"github.com/roach88/metastore/internal/recovery"
	"github.com/roach88/metastore/internal/search"
	"github.com/roach88/metastore/internal/validation"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (validation, authorization, unknown resource)
	ExitCommandError = 2 // Command or infrastructure error (bad flags, unreadable file, store failure)
	ExitFatal        = 3 // The store cannot be trusted (index or recovery failure)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError (2) if the error is not an ExitError, which
// covers flag and argument errors reported by cobra.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// classify maps a component error onto an exit code and a stable error code.
func classify(err error) (int, string) {
	var ae *authz.Error
	switch {
	case validation.IsValidationError(err):
		return ExitFailure, validation.ErrCodeValidationFailed
	case errors.As(err, &ae):
		return ExitFailure, string(ae.Code)
	case search.IsIndexError(err):
		return ExitFatal, search.ErrCodeIndexBatchFailed
	case recovery.IsRecoveryError(err):
		return ExitFatal, recovery.ErrCodeRecoveryFailed
	case engine.IsLimitError(err):
		return ExitFailure, string(engine.ErrCodeTooManyFacts)
	case engine.IsLogError(err):
		return ExitCommandError, string(engine.ErrCodeLogAppendFailed)
	case engine.IsStoreError(err):
		return ExitCommandError, string(engine.ErrCodeStoreWriteFailed)
	default:
		return ExitCommandError, ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // VALIDATION_FAILED, UNAUTHORIZED, ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text output
// uses fmt.Stringer when data implements it.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return. Validation errors carry their violations as details.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, errCode := classify(err)
	var details any
	if vs := validation.Violations(err); len(vs) > 0 {
		details = vs
	}
	if outErr := f.Error(errCode, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(code, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
