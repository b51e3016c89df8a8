// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewThemeForMode_PinsBackground(t *testing.T) {
	if theme := NewThemeForMode(ModeDark); !theme.IsDark {
		t.Error("dark mode should set IsDark")
	}
	if theme := NewThemeForMode("LIGHT"); theme.IsDark {
		t.Error("light mode should clear IsDark")
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewThemeForMode(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"Thinking", theme.Thinking},
		{"LinkStyle", theme.LinkStyle},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"NoticeError", theme.NoticeError},
		{"ListItemSelected", theme.ListItemSelected},
	}

	for _, s := range styles {
		rendered := s.style.Render("test")
		if !strings.Contains(rendered, "test") {
			t.Errorf("%s style lost its content: %q", s.name, rendered)
		}
	}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}

	theme := NewThemeForMode(ModeDark)
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode() at width %d = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestContentWidth(t *testing.T) {
	theme := NewThemeForMode(ModeDark)

	theme.SetSize(10, 24)
	if got := theme.ContentWidth(); got != 20 {
		t.Errorf("ContentWidth() at width 10 = %d, want 20", got)
	}
	theme.SetSize(80, 24)
	if got := theme.ContentWidth(); got != 76 {
		t.Errorf("ContentWidth() at width 80 = %d, want 76", got)
	}
	theme.SetSize(300, 24)
	if got := theme.ContentWidth(); got != 120 {
		t.Errorf("ContentWidth() at width 300 = %d, want 120", got)
	}
}
