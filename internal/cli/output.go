package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/originguard/internal/application"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// Exit codes for guardctl.
const (
	ExitSuccess      = 0 // Command succeeded and the navigation or trust check passed
	ExitFailure      = 1 // Policy outcome: navigation blocked, TLS cancelled, last-resort list served
	ExitCommandError = 2 // Bad arguments, unreachable authority, rejected credentials
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// errorCode maps an error to the stable code reported in JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, application.ErrServedFallback):
		return "fallback"
	case errors.Is(err, driven.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, driven.ErrForbidden):
		return "forbidden"
	case errors.Is(err, driven.ErrConflict):
		return "conflict"
	case errors.Is(err, driven.ErrNotFound):
		return "not_found"
	case errors.Is(err, driven.ErrInvalid), errors.Is(err, driven.ErrBadRequest):
		return "invalid"
	case errors.Is(err, driven.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, driven.ErrTransient):
		return "unavailable"
	case GetExitCode(err) == ExitFailure:
		return "denied"
	default:
		return "error"
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics go here so they never corrupt JSON on Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope for every command result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a result. Text output relies on the value's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Warn writes a diagnostic line that is shown in text mode only.
func (f *OutputFormatter) Warn(format string, args ...any) {
	if f.Format == "json" {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}
