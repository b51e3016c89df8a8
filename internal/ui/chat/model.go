// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/export"
	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
	"github.com/jeranaias/research-tui/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// noticeTTL is how long a status bar notice stays visible.
	noticeTTL = 5 * time.Second

	// headerHeight, inputHeight and statusHeight frame the viewport.
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
)

// Backend is the part of the API client the interface needs besides the
// streaming transport, which the Controller owns.
type Backend interface {
	CreateChat(ctx context.Context, title string) (*api.Chat, error)
	GetChat(ctx context.Context, id string) (*api.Chat, error)
	ListChats(ctx context.Context, limit int) ([]api.Chat, error)
	DeleteChat(ctx context.Context, id string) error
}

// Options configures a Model.
type Options struct {
	Backend    Backend
	Controller *session.Controller
	Theme      *styles.Theme

	UI            config.UIConfig
	ListLimit     int
	MaxInputRunes int

	// ChatID opens an existing chat at startup; empty creates a new one.
	ChatID string

	// ExportDir is where Ctrl+E writes transcripts.
	ExportDir string
}

// viewMode selects what the main area shows.
type viewMode int

const (
	modeChat viewMode = iota
	modeList
)

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeWarning
	noticeError
)

type notice struct {
	id    int
	text  string
	level noticeLevel
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the full-screen chat. It never mutates
// conversation state directly: the Controller writes to the Store and the
// view renders whatever snapshot the Store last published.
type Model struct {
	backend Backend
	ctrl    *session.Controller
	store   *session.Store
	feed    *snapshotFeed
	theme   *styles.Theme
	keys    KeyMap
	opts    Options

	snap      session.Snapshot
	lastStats *model.StreamStats

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	renderer *markdownRenderer

	mode     viewMode
	chats    []api.Chat
	selected int

	notice   notice
	noticeID int

	width  int
	height int
	ready  bool

	// loading is set while the initial chat is being created or fetched.
	loading bool

	// sending is set from submit until its ResultMsg arrives. The
	// controller only reports busy once the command goroutine runs Send.
	sending bool
}

// New creates a new chat model. The store's listener is registered here,
// so the first snapshot is ready before Init runs.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewThemeForMode(opts.UI.Theme)
	}
	if opts.MaxInputRunes <= 0 {
		opts.MaxInputRunes = config.Default().Chat.MaxInputRunes
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = config.Default().Chat.ListLimit
	}
	theme := opts.Theme

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a research question..."
	ti.CharLimit = opts.MaxInputRunes
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	// ASCII frames so the spinner survives any terminal font.
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	store := opts.Controller.Store()
	feed := newSnapshotFeed(opts.UI.RenderFPS)
	// The subscription lives as long as the program.
	_ = store.Subscribe(feed.push)

	return Model{
		backend:  opts.Backend,
		ctrl:     opts.Controller,
		store:    store,
		feed:     feed,
		theme:    theme,
		keys:     DefaultKeyMap(),
		opts:     opts,
		snap:     store.Snapshot(),
		input:    ti,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		renderer: newMarkdownRenderer(theme.IsDark),
		loading:  store.ChatID() == "",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.feed.wait()}
	switch {
	case m.opts.ChatID != "":
		cmds = append(cmds, m.openChat(m.opts.ChatID))
	case m.store.ChatID() == "":
		cmds = append(cmds, m.createChat())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		if m.mode == modeList {
			return m.handleListKey(msg)
		}
		return m.handleKey(msg)

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, m.feed.wait()

	case ResultMsg:
		return m.handleResult(msg)

	case chatOpenedMsg:
		return m.handleChatOpened(msg)

	case chatsLoadedMsg:
		if msg.err != nil {
			return m.setNotice(noticeError, fmt.Sprintf("Could not list chats: %v", msg.err))
		}
		m.chats = msg.chats
		m.selected = 0
		m.mode = modeList
		m.input.Blur()
		return m, nil

	case chatDeletedMsg:
		if msg.err != nil {
			return m.setNotice(noticeError, fmt.Sprintf("Could not delete chat: %v", msg.err))
		}
		m.removeListed(msg.id)
		if msg.id == m.snap.ChatID {
			// The open chat is gone; start over with a fresh one.
			return m, m.createChat()
		}
		return m.setNotice(noticeInfo, "Chat deleted")

	case exportedMsg:
		if msg.err != nil {
			return m.setNotice(noticeError, fmt.Sprintf("Export failed: %v", msg.err))
		}
		return m.setNotice(noticeInfo, "Exported to "+msg.path)

	case noticeExpiredMsg:
		if msg.id == m.notice.id {
			m.notice = notice{}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Active() {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		// RELIABILITY: never leave a request streaming behind the exit.
		m.ctrl.Abort()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Abort):
		if m.ctrl.Abort() {
			return m.setNotice(noticeWarning, "Stopping response...")
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		if m.busy() {
			return m.setNotice(noticeWarning, "Stop the current response first (Esc)")
		}
		return m, m.createChat()

	case key.Matches(msg, m.keys.ListChats):
		return m, m.listChats()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportChat()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Abort()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		m.mode = modeChat
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.chats)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if len(m.chats) == 0 {
			return m, nil
		}
		if m.busy() {
			return m.setNotice(noticeWarning, "Stop the current response first (Esc)")
		}
		return m, m.openChat(m.chats[m.selected].ID)

	case key.Matches(msg, m.keys.Delete):
		if len(m.chats) == 0 {
			return m, nil
		}
		id := m.chats[m.selected].ID
		if id == m.snap.ChatID && m.busy() {
			return m.setNotice(noticeWarning, "Stop the current response first (Esc)")
		}
		return m, m.deleteChat(id)
	}
	return m, nil
}

// submit sends the input. A second submit while a stream is active is
// rejected here and the text stays in the input.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.busy() {
		return m.setNotice(noticeWarning, "A response is still streaming (Esc to stop)")
	}
	if m.loading || m.snap.ChatID == "" {
		return m.setNotice(noticeWarning, "Still connecting to the backend...")
	}
	if utf8.RuneCountInString(text) > m.opts.MaxInputRunes {
		return m.setNotice(noticeWarning, fmt.Sprintf("Message is too long (max %d characters)", m.opts.MaxInputRunes))
	}

	m.input.Reset()
	m.sending = true
	m.viewport.GotoBottom()
	return m, sendCmd(m.ctrl, text)
}

// busy reports whether a send is in flight, including one whose command
// has not reached the controller yet.
func (m Model) busy() bool {
	return m.sending || m.ctrl.Busy()
}

// =============================================================================
// RESULTS
// =============================================================================

func (m Model) handleResult(msg ResultMsg) (tea.Model, tea.Cmd) {
	m.sending = false
	m.applySnapshot(m.store.Snapshot())

	switch {
	case msg.Err == nil:
		stats := msg.Result.Stats
		m.lastStats = &stats
		if m.opts.UI.ShowStats {
			return m.setNotice(noticeInfo, formatStats(stats))
		}
		return m, nil

	case errors.Is(msg.Err, session.ErrEmptyMessage):
		return m, nil

	case errors.Is(msg.Err, session.ErrCancelled):
		return m.setNotice(noticeWarning, "Response stopped")

	case errors.Is(msg.Err, session.ErrStreamActive):
		// The rejected text was cleared on submit; give it back.
		if m.input.Value() == "" {
			m.input.SetValue(msg.Text)
		}
		return m.setNotice(noticeWarning, "A response is still streaming (Esc to stop)")

	case errors.Is(msg.Err, session.ErrMessageTooLong):
		return m.setNotice(noticeWarning, fmt.Sprintf("Message is too long (max %d characters)", m.opts.MaxInputRunes))

	default:
		return m.setNotice(noticeError, "Error: "+msg.Err.Error())
	}
}

func (m Model) handleChatOpened(msg chatOpenedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		return m.setNotice(noticeError, fmt.Sprintf("Could not open chat: %v", msg.err))
	}
	if err := m.store.Load(msg.chat.Conversation()); err != nil {
		return m.setNotice(noticeWarning, "Stop the current response first (Esc)")
	}

	m.mode = modeChat
	m.lastStats = nil
	m.input.Focus()
	m.applySnapshot(m.store.Snapshot())
	m.viewport.GotoBottom()
	return m, textinput.Blink
}

// applySnapshot installs s and re-renders the transcript.
func (m *Model) applySnapshot(s session.Snapshot) {
	if s.ChatID != m.snap.ChatID {
		m.renderer.Reset()
	}
	m.snap = s
	m.refreshViewport()
}

func (m Model) setNotice(level noticeLevel, text string) (tea.Model, tea.Cmd) {
	m.noticeID++
	m.notice = notice{id: m.noticeID, text: text, level: level}
	id := m.noticeID
	return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m *Model) removeListed(id string) {
	for i, c := range m.chats {
		if c.ID == id {
			m.chats = append(m.chats[:i], m.chats[i+1:]...)
			break
		}
	}
	if m.selected >= len(m.chats) && m.selected > 0 {
		m.selected = len(m.chats) - 1
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.ready = true
	m.layout()
	return m, nil
}

func (m *Model) layout() {
	helpHeight := 0
	if m.help.ShowAll {
		for _, col := range m.keys.FullHelp() {
			if len(col) > helpHeight {
				helpHeight = len(col)
			}
		}
	}
	vh := m.height - headerHeight - inputHeight - statusHeight - helpHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vh
	m.help.Width = m.width

	// Border (2) + padding (2) + prompt (2)
	m.input.Width = m.width - 6
	if m.input.Width < 10 {
		m.input.Width = 10
	}

	m.renderer.SetWidth(m.theme.ContentWidth())
	m.refreshViewport()
}

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd runs a Send on its own goroutine. Chunks reach the view through
// the store subscription; only the final result comes back here.
func sendCmd(ctrl *session.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		result, err := ctrl.Send(context.Background(), text)
		return ResultMsg{Result: result, Err: err, Text: text}
	}
}

func (m Model) createChat() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		chat, err := backend.CreateChat(context.Background(), "")
		return chatOpenedMsg{chat: chat, err: err}
	}
}

func (m Model) openChat(id string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		chat, err := backend.GetChat(context.Background(), id)
		return chatOpenedMsg{chat: chat, err: err}
	}
}

func (m Model) listChats() tea.Cmd {
	backend, limit := m.backend, m.opts.ListLimit
	return func() tea.Msg {
		chats, err := backend.ListChats(context.Background(), limit)
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

func (m Model) deleteChat(id string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return chatDeletedMsg{id: id, err: backend.DeleteChat(context.Background(), id)}
	}
}

func (m Model) exportChat() tea.Cmd {
	conv := m.store.Conversation()
	dir := m.opts.ExportDir
	return func() tea.Msg {
		opts := export.DefaultOptions()
		if dir != "" {
			opts.OutputDir = dir
		}
		exporter, err := export.ForFormat("markdown", opts)
		if err != nil {
			return exportedMsg{err: err}
		}
		path, err := export.ExportToFile(conv, exporter, opts)
		return exportedMsg{path: path, err: err}
	}
}

func formatStats(s model.StreamStats) string {
	return "Answered: " + s.Format()
}
