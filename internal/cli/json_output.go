// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`

	// Error is the error message if Success is false, null otherwise
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Print writes the response to stdout.
// Human-readable messages go to stderr when JSON mode is enabled.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// writeJSON is the success path shared by commands: it wraps data in a
// JSONResponse for command and writes it to w.
func writeJSON(w io.Writer, command string, data interface{}) error {
	if err := NewJSONResponse(command, data).Write(w); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// StderrPrint prints to stderr, for human-readable output in JSON mode.
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
