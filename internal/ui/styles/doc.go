// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the research TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light
and dark terminals. The background is detected through termenv unless the
configured theme pins it.

# Key Types

  - Theme: every lipgloss style the chat view renders with
  - LayoutMode: narrow, medium, or wide layouts by terminal width
  - StatusIndicatorSet: ASCII markers shown next to colored states

# Usage

	theme := styles.NewThemeForMode(cfg.UI.Theme)
	theme.SetSize(msg.Width, msg.Height)
	header := theme.Header.Render("Research Assistant")
*/
package styles
