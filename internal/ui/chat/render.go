// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log"
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderKey identifies a committed message. IDs are only unique per chat.
type renderKey struct {
	chatID string
	id     int64
}

// markdownRenderer renders committed messages with glamour. Committed
// messages never change, so each is rendered once per width.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
	cache map[renderKey]string
}

func newMarkdownRenderer(dark bool) *markdownRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	return &markdownRenderer{
		style: style,
		width: 80,
		cache: make(map[renderKey]string),
	}
}

// SetWidth changes the wrap width, invalidating every cached rendering.
func (r *markdownRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.tr = nil
	r.Reset()
}

// Reset drops cached renderings.
func (r *markdownRenderer) Reset() {
	r.cache = make(map[renderKey]string)
}

// Render returns md rendered for the terminal, or md itself if glamour fails.
func (r *markdownRenderer) Render(k renderKey, md string) string {
	if out, ok := r.cache[k]; ok {
		return out
	}

	if r.tr == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			log.Printf("RENDER_INIT_FAILED | style=%s error=%v", r.style, err)
			return md
		}
		r.tr = tr
	}

	out, err := r.tr.Render(md)
	if err != nil {
		return md
	}
	out = strings.Trim(out, "\n")
	r.cache[k] = out
	return out
}
