// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrStreamActive is returned when a second submit arrives while a
	// stream is still Sending or Streaming.
	ErrStreamActive = errors.New("a response is already streaming")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned for input over the configured limit.
	ErrMessageTooLong = errors.New("message is too long")

	// ErrCancelled reports a user abort. It is not a failure.
	ErrCancelled = errors.New("response cancelled")

	// ErrIncompleteStream is the failure recorded when the stream ends
	// without a complete event.
	ErrIncompleteStream = errors.New("stream ended before the response was complete")

	// ErrStaleStream is returned for operations tagged with a superseded
	// generation.
	ErrStaleStream = errors.New("stream generation is no longer current")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ServerError is the failure recorded for an error chunk.
type ServerError struct {
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message == "" {
		return "server reported an error"
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

// TransportError is a read failure after the stream started. Partial is the
// text that had been received; it is kept for diagnostics only and never
// committed.
type TransportError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
