// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Markdown and transcript rendering for line-mode output.
//
// USABILITY: answers are rendered with glamour only when stdout is a TTY so
// piped output stays byte-for-byte what the assistant wrote.

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

func renderer() *glamour.TermRenderer {
	markdownOnce.Do(func() {
		width := GetTerminalWidth() - 2
		if width > MaxRenderWidth {
			width = MaxRenderWidth
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	return markdownRenderer
}

// renderMarkdown renders content for the terminal, returning it unchanged
// when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	r := renderer()
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n") + "\n"
}

// =============================================================================
// TRANSCRIPT PIECES
// =============================================================================

// printOptions controls what printMessage and printAnswer include.
type printOptions struct {
	Markdown     bool
	ShowThinking bool
	ShowSources  bool
	ShowStats    bool
}

// printSources writes a numbered source list.
func printSources(w io.Writer, sources []model.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", DimStyle.Render("Sources:"))
	for i, src := range sources {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, src.Label())
		if src.URL != "" && src.Title != "" {
			fmt.Fprintf(w, "      %s\n", LinkStyle.Render(src.URL))
		}
	}
}

// printThinking writes the reasoning trace dimmed.
func printThinking(w io.Writer, thinking string) {
	thinking = strings.TrimSpace(thinking)
	if thinking == "" {
		return
	}
	for _, line := range strings.Split(thinking, "\n") {
		fmt.Fprintln(w, DimStyle.Render("  > "+line))
	}
	fmt.Fprintln(w)
}

// printMessage writes one stored message, used by "chats show".
func printMessage(w io.Writer, msg model.Message, opts printOptions) {
	label := UserStyle.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleAssistant {
		label = AssistantStyle.Render(msg.Role.DisplayName())
	}
	stamp := ""
	if !msg.CreatedAt.IsZero() {
		stamp = " " + DimStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "%s%s\n", label, stamp)

	if msg.Role == model.RoleAssistant && opts.ShowThinking {
		printThinking(w, msg.Thinking)
	}
	printAnswer(w, msg.Content, opts)
	if msg.Role == model.RoleAssistant && opts.ShowSources {
		printSources(w, msg.Sources)
	}
	fmt.Fprintln(w)
}

// printAnswer writes content, rendered as markdown when enabled.
func printAnswer(w io.Writer, content string, opts printOptions) {
	if opts.Markdown {
		fmt.Fprint(w, renderMarkdown(content))
		return
	}
	fmt.Fprint(w, content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Fprintln(w)
	}
}
