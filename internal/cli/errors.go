// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for CLI commands.
//
// Commands always return errors and let the Handle* wrappers decide how to
// show them and which exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitServerError indicates the backend reported a failure
	ExitServerError = 4
	// ExitNetworkError indicates a network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a chat was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitCancelled matches the shell convention for SIGINT
	ExitCancelled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context.
type CommandError struct {
	Command string // e.g. "chats"
	Action  string // e.g. "delete"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a missing required argument with usage.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnsupportedFormat reports an unknown export format.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: fmt.Sprintf("supported formats: %v", supported),
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse("", err)
		resp.ErrorType = errorType(err)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// HandleErrorAndExit displays err on stderr and exits with GetExitCode(err).
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayError(os.Stdout, err, true)
	} else {
		DisplayError(os.Stderr, err, false)
	}
	os.Exit(GetExitCode(err))
}

func errorType(err error) string {
	var validationErr *ValidationError
	var serverErr *session.ServerError
	switch {
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.Is(err, api.ErrNotFound):
		return "not_found"
	case errors.As(err, &serverErr):
		return "server_error"
	case errors.Is(err, session.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) ||
		errors.Is(err, session.ErrEmptyMessage) ||
		errors.Is(err, session.ErrMessageTooLong) {
		return ExitUsageError
	}

	var cfgErr config.ValidationError
	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgErrs) {
		return ExitConfigError
	}

	if errors.Is(err, session.ErrCancelled) || errors.Is(err, context.Canceled) {
		return ExitCancelled
	}

	if errors.Is(err, api.ErrNotFound) {
		return ExitNotFoundError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ExitNetworkError
	}

	var serverErr *session.ServerError
	if errors.As(err, &serverErr) ||
		errors.Is(err, api.ErrOperationFailed) ||
		errors.Is(err, session.ErrIncompleteStream) {
		return ExitServerError
	}

	var transportErr *session.TransportError
	if errors.As(err, &transportErr) {
		return ExitNetworkError
	}

	return ExitGeneralError
}
