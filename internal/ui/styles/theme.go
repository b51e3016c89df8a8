// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme mode names accepted by NewThemeForMode.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	App            lipgloss.Style
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserBody       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantBody  lipgloss.Style
	Timestamp      lipgloss.Style

	// Live stream rendering: text is plain, thinking is dimmed.
	StreamingText lipgloss.Style
	Thinking      lipgloss.Style
	Spinner       lipgloss.Style

	SourcesHeader lipgloss.Style
	SourceIndex   lipgloss.Style
	LinkStyle     lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	CharCount        lipgloss.Style
	CharCountDanger  lipgloss.Style

	StatusBar     lipgloss.Style
	StatusActive  lipgloss.Style
	StatusMuted   lipgloss.Style
	NoticeInfo    lipgloss.Style
	NoticeWarning lipgloss.Style
	NoticeError   lipgloss.Style

	// ==========================================================================
	// CHAT LIST
	// ==========================================================================

	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListMeta         lipgloss.Style
}

// NewTheme creates a theme that follows the terminal background.
func NewTheme() *Theme {
	return NewThemeForMode(ModeAuto)
}

// NewThemeForMode creates a theme. "dark" and "light" pin the background
// instead of asking the terminal, which also avoids the OSC query when
// stdout is not a TTY.
func NewThemeForMode(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserLabel)

	t.UserBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantLabel)

	t.AssistantBody = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBorder)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StreamingText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.SourcesHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		PaddingLeft(2)

	t.SourceIndex = lipgloss.NewStyle().
		Foreground(TextMuted)

	// ACCESSIBILITY: Underline provides non-color visual cue for links
	t.LinkStyle = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CharCount = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CharCountDanger = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusActive = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusMuted = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.NoticeInfo = lipgloss.NewStyle().
		Foreground(Cyan)

	t.NoticeWarning = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Chat list
	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true).
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(Purple)

	t.ListMeta = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// ContentWidth is the usable width inside the frame, never below 20.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if t.GetLayoutMode() == LayoutWide {
		// Long lines are hard to read; cap prose width on wide terminals.
		if w > 120 {
			w = 120
		}
	}
	if w < 20 {
		return 20
	}
	return w
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
