// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrOperationFailed matches every non-2xx response.
	ErrOperationFailed = errors.New("operation failed")

	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("chat not found")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	// Op is what was attempted, e.g. "send message".
	Op     string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("failed to %s (HTTP %d): %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("failed to %s (HTTP %d)", e.Op, e.Status)
}

// Is matches ErrOperationFailed, and ErrNotFound for 404s.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrOperationFailed:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	default:
		return false
	}
}

// Temporary reports whether retrying might succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// errorBody covers FastAPI's {"detail": "..."} and a generic {"error": "..."}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// newAPIError builds an APIError from a response body.
func newAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		var detail string
		if len(eb.Detail) > 0 && json.Unmarshal(eb.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else if len(eb.Detail) > 0 {
			// Validation errors carry a structured detail.
			apiErr.Detail = string(eb.Detail)
		} else {
			apiErr.Detail = eb.Error
		}
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		text = http.StatusText(status)
	}
	apiErr.Detail = text
	return apiErr
}
