// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// CHAT TYPES
// =============================================================================

// Chat is a conversation as stored by the backend.
type Chat struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Messages  []model.Message
}

// Conversation converts the chat into a local conversation.
func (c *Chat) Conversation() *model.Conversation {
	return model.NewConversationFromMessages(c.ID, c.Title, c.CreatedAt, c.Messages)
}

// chatJSON is the backend's chat shape.
type chatJSON struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt string        `json:"created_at"`
	Messages  []messageJSON `json:"messages"`
}

// messageJSON is the backend's message shape. Sources and thinking are null
// when absent.
type messageJSON struct {
	ID        int64          `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Sources   []model.Source `json:"sources"`
	Thinking  *string        `json:"thinking"`
	CreatedAt string         `json:"created_at"`
}

// UnmarshalJSON decodes the backend's chat shape.
func (c *Chat) UnmarshalJSON(data []byte) error {
	var w chatJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	created, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("chat %s: %w", w.ID, err)
	}

	*c = Chat{ID: w.ID, Title: w.Title, CreatedAt: created}
	for _, m := range w.Messages {
		msg, err := m.toModel()
		if err != nil {
			return fmt.Errorf("chat %s: %w", w.ID, err)
		}
		c.Messages = append(c.Messages, msg)
	}
	return nil
}

// MarshalJSON encodes the backend's chat shape.
func (c Chat) MarshalJSON() ([]byte, error) {
	w := chatJSON{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: formatTimestamp(c.CreatedAt),
		Messages:  make([]messageJSON, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		w.Messages = append(w.Messages, fromModel(m))
	}
	return json.Marshal(w)
}

func (m messageJSON) toModel() (model.Message, error) {
	created, err := parseTimestamp(m.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("message %d: %w", m.ID, err)
	}
	msg := model.Message{
		ID:        m.ID,
		Role:      model.Role(m.Role),
		Content:   m.Content,
		Sources:   m.Sources,
		CreatedAt: created,
	}
	if m.Thinking != nil {
		msg.Thinking = *m.Thinking
	}
	return msg, nil
}

func fromModel(m model.Message) messageJSON {
	w := messageJSON{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Sources:   m.Sources,
		CreatedAt: formatTimestamp(m.CreatedAt),
	}
	if m.Thinking != "" {
		thinking := m.Thinking
		w.Thinking = &thinking
	}
	return w
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// timestampLayouts are tried in order. The backend emits naive ISO-8601
// timestamps (UTC) without a zone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}
