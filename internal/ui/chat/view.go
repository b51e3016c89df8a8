// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
	"github.com/jeranaias/research-tui/internal/ui/styles"
	"github.com/jeranaias/research-tui/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var main string
	if m.mode == modeList {
		main = m.renderChatList()
	} else {
		main = m.viewport.View()
	}

	parts := []string{m.renderHeader(), main, m.renderInput(), m.renderStatusBar()}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.snap.Title
	if m.loading {
		title = "Connecting..."
	}
	left := m.theme.HeaderTitle.Render("Research Assistant")
	right := m.theme.HeaderSubtitle.Render(util.TruncateWidth(title, max(10, m.width/2)))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript and keeps the view pinned to the
// bottom if it was already there.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript() string {
	s := m.snap
	if len(s.Messages) == 0 && !s.Active() {
		return m.renderEmpty()
	}

	var b strings.Builder
	for _, msg := range s.Messages {
		b.WriteString(m.renderMessage(s.ChatID, msg))
		b.WriteString("\n\n")
	}
	if s.Active() {
		b.WriteString(m.renderLive(s))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderEmpty() string {
	hint := m.theme.StatusMuted.Render("Ask anything. Answers stream in with their sources.")
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, hint)
}

func (m Model) renderLabel(role model.Role, ts string) string {
	style := m.theme.AssistantLabel
	if role == model.RoleUser {
		style = m.theme.UserLabel
	}
	label := style.Render(role.DisplayName())
	if ts != "" {
		label += " " + m.theme.Timestamp.Render(ts)
	}
	return label
}

func (m Model) renderMessage(chatID string, msg model.Message) string {
	width := m.theme.ContentWidth()
	ts := ""
	if !msg.CreatedAt.IsZero() {
		ts = msg.CreatedAt.Local().Format("15:04")
	}

	var b strings.Builder
	b.WriteString(m.renderLabel(msg.Role, ts))
	b.WriteString("\n")

	if msg.Role == model.RoleUser {
		b.WriteString(m.theme.UserBody.Width(width).Render(msg.Content))
		return b.String()
	}

	if m.opts.UI.ShowThinking && msg.HasThinking() {
		b.WriteString(m.theme.Thinking.Width(width).Render(msg.Thinking))
		b.WriteString("\n")
	}

	var body string
	if m.opts.UI.Markdown {
		body = m.renderer.Render(renderKey{chatID: chatID, id: msg.ID}, msg.Content)
	} else {
		body = m.theme.StreamingText.Width(width).Render(msg.Content)
	}
	b.WriteString(body)

	if m.opts.UI.ShowSources && msg.HasSources() {
		b.WriteString("\n")
		b.WriteString(m.renderSources(msg.Sources))
	}
	return b.String()
}

// renderLive draws the active stream: the thinking snapshot dimmed under a
// spinner, then the running text without markdown.
func (m Model) renderLive(s session.Snapshot) string {
	width := m.theme.ContentWidth()

	var b strings.Builder
	b.WriteString(m.renderLabel(model.RoleAssistant, ""))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	b.WriteString("\n")

	thinking := s.Thinking
	if thinking == "" && s.Streaming == "" {
		thinking = "Thinking..."
	}
	if thinking != "" && (m.opts.UI.ShowThinking || s.Streaming == "") {
		b.WriteString(m.theme.Thinking.Width(width).Render(thinking))
		b.WriteString("\n")
	}
	if s.Streaming != "" {
		b.WriteString(m.theme.StreamingText.Width(width).Render(s.Streaming))
	}
	return b.String()
}

func (m Model) renderSources(sources []model.Source) string {
	var b strings.Builder
	b.WriteString(m.theme.SourcesHeader.Render("Sources"))
	for i, src := range sources {
		b.WriteString("\n  ")
		b.WriteString(m.theme.SourceIndex.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(" ")
		b.WriteString(src.Label())
		if src.URL != "" && src.URL != src.Label() {
			b.WriteString(" ")
			b.WriteString(m.theme.LinkStyle.Render(src.URL))
		}
	}
	return b.String()
}

// =============================================================================
// CHAT LIST
// =============================================================================

func (m Model) renderChatList() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Recent chats"))
	b.WriteString("\n\n")

	if len(m.chats) == 0 {
		b.WriteString(m.theme.StatusMuted.Render("  No chats yet."))
	}
	for i, c := range m.chats {
		title := util.TruncateWidth(c.Title, max(10, m.theme.ContentWidth()-20))
		meta := m.theme.ListMeta.Render(c.CreatedAt.Local().Format("Jan 02 15:04"))
		line := title + "  " + meta
		if c.ID == m.snap.ChatID {
			line += " " + m.theme.StatusActive.Render(styles.StatusIndicators.Active)
		}
		if i == m.selected {
			b.WriteString(m.theme.ListItemSelected.Render(line))
		} else {
			b.WriteString(m.theme.ListItem.Render(line))
		}
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	left := m.renderState()
	if m.notice.text != "" {
		left += "  " + m.renderNotice()
	}

	var right string
	if m.mode == modeList {
		right = m.help.ShortHelpView(listKeys(m.keys).ShortHelp())
	} else {
		count := utf8.RuneCountInString(m.input.Value())
		countStyle := m.theme.CharCount
		if count > m.opts.MaxInputRunes*9/10 {
			countStyle = m.theme.CharCountDanger
		}
		right = countStyle.Render(fmt.Sprintf("%d/%d", count, m.opts.MaxInputRunes))
		if m.width >= 100 {
			right = m.help.ShortHelpView(m.keys.ShortHelp()) + "  " + right
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderState() string {
	switch m.snap.State {
	case session.StateSending:
		return m.theme.StatusActive.Render(styles.StatusIndicators.Active + " sending")
	case session.StateStreaming:
		return m.theme.StatusActive.Render(styles.StatusIndicators.Active + " streaming")
	case session.StateFailed:
		return m.theme.NoticeError.Render(styles.StatusIndicators.Error + " failed")
	case session.StateCancelled:
		return m.theme.NoticeWarning.Render(styles.StatusIndicators.Warning + " stopped")
	default:
		return m.theme.StatusMuted.Render("ready")
	}
}

func (m Model) renderNotice() string {
	switch m.notice.level {
	case noticeError:
		return m.theme.NoticeError.Render(m.notice.text)
	case noticeWarning:
		return m.theme.NoticeWarning.Render(m.notice.text)
	default:
		return m.theme.NoticeInfo.Render(m.notice.text)
	}
}
