// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Research Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a role the backend understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is a citation attached to a finalized assistant message.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Label returns the title, falling back to the URL for untitled results.
func (s Source) Label() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return s.URL
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single committed message in a conversation.
//
// Sources and Thinking are only set on assistant messages, and only when the
// backend actually produced them. An empty Thinking means absent.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	Thinking  string    `json:"thinking,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasSources reports whether the message carries at least one citation.
func (m Message) HasSources() bool {
	return len(m.Sources) > 0
}

// HasThinking reports whether a reasoning trace was attached.
func (m Message) HasThinking() bool {
	return m.Thinking != ""
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// clone returns a deep copy so callers cannot alias committed sources.
func (m Message) clone() Message {
	if m.Sources != nil {
		m.Sources = append([]Source(nil), m.Sources...)
	}
	return m
}
