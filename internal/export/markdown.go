// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	msgs := conv.Messages()
	title := conv.GetTitle()
	exported := e.options.now()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "chat_id: %s\n", escapeYAML(conv.ID))
		fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(msgs))
		fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&sb, "- **Questions**: %d\n", conv.CountRole(model.RoleUser))
		fmt.Fprintf(&sb, "- **Answers**: %d\n", conv.CountRole(model.RoleAssistant))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range msgs {
		label := msg.Role.DisplayName()
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if e.options.IncludeThinking && msg.HasThinking() {
			sb.WriteString(formatThinking(msg.Thinking))
			sb.WriteString("\n\n")
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if e.options.IncludeSources && msg.HasSources() {
			sb.WriteString(formatSources(msg.Sources))
			sb.WriteString("\n")
		}

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "\n---\n\n*Exported on %s*\n", exported.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatThinking renders the reasoning trace as a collapsed block.
func formatThinking(thinking string) string {
	var sb strings.Builder
	sb.WriteString("<details>\n<summary>Reasoning</summary>\n\n")
	for _, line := range strings.Split(strings.TrimSpace(thinking), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n</details>")
	return sb.String()
}

// formatSources renders citations as a numbered list of links.
func formatSources(sources []model.Source) string {
	var sb strings.Builder
	sb.WriteString("**Sources**\n\n")
	for i, src := range sources {
		label := escapeMarkdown(src.Label())
		if src.URL == "" {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, label)
			continue
		}
		fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, label, escapeURL(src.URL))
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break titles and link labels.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"\n", " ",
	)
	return r.Replace(s)
}

// escapeURL keeps a URL from terminating the link early.
func escapeURL(s string) string {
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29").Replace(s)
}

// escapeYAML quotes values containing YAML-significant characters.
func escapeYAML(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
