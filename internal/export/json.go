// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// Document is the JSON export layout.
type Document struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// JSONExporter exports conversations to JSON.
// Thinking and sources are dropped when the options exclude them.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	msgs := conv.Messages()
	for i := range msgs {
		if !e.options.IncludeThinking {
			msgs[i].Thinking = ""
		}
		if !e.options.IncludeSources {
			msgs[i].Sources = nil
		}
	}

	doc := Document{
		ID:         conv.ID,
		Title:      conv.GetTitle(),
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
		ExportedAt: e.options.now(),
		Messages:   msgs,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
