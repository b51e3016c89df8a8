// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode conversation.
//
// USABILITY: Markdown rendering and history for better CLI experience
//
// Command: chat [CHAT_ID]
// Short:   Conversation without the full-screen interface
//
// Slash commands:
//   /help, /h, /?          Show commands
//   /new                   Start a new chat
//   /open ID               Switch to an existing chat
//   /chats                 List recent chats
//   /rename TITLE          Rename the current chat
//   /delete                Delete the current chat and start a new one
//   /export [md|json] [DIR]  Export the current chat
//   /thinking, /sources    Toggle reasoning and source display
//   /status                Show chat and stream statistics
//   /quit, /exit, /q       Leave
//
// Ctrl+C while an answer is streaming stops that answer; at the prompt it
// leaves the chat.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/export"
	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
)

// =============================================================================
// INPUT WITH HISTORY
// =============================================================================

// historyFileName lives in the config directory.
const historyFileName = "chat_history"

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI(historyDir string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if historyDir == "" {
		historyDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(historyDir, historyFileName),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history.
// SECURITY: 0600, questions can be sensitive.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession is the state of one line-mode chat.
type chatSession struct {
	env  *Env
	ctrl *session.Controller
	args Args
	opts printOptions
	out  io.Writer
}

// RunChat runs the line-mode chat until /quit, Ctrl+D or Ctrl+C at the prompt.
func RunChat(ctx context.Context, args Args) error {
	if !IsTTY() {
		return &ValidationError{Field: "stdin", Reason: "chat needs a terminal; use 'research ask' for piped input"}
	}
	args.JSON = false

	env, err := LoadEnv(args)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.SetupLogging(true); err != nil && args.Verbose {
		StderrPrint("%s %v\n", WarningStyle.Render("[WARN]"), err)
	}

	conv, err := env.OpenConversation(ctx, args.ChatID)
	if err != nil {
		return NewCommandError("chat", "open chat", err)
	}

	s := &chatSession{
		env:  env,
		ctrl: env.NewController(conv),
		args: args,
		opts: printOptions{
			Markdown:     env.Config.UI.Markdown && IsStdoutTTY(),
			ShowThinking: env.Config.UI.ShowThinking,
			ShowSources:  env.Config.UI.ShowSources,
			ShowStats:    env.Config.UI.ShowStats,
		},
		out: os.Stdout,
	}

	historyDir, _ := config.ConfigDir()
	input := NewChatCLI(historyDir)
	defer input.Close()

	// Interrupts only arrive while an answer streams: at the prompt the
	// terminal is raw and liner reports Ctrl+C as ErrPromptAborted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			s.ctrl.Abort()
		}
	}()

	s.printHeader()

	for {
		line, err := input.ReadInput(PromptStyle.Render("research> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or a closed terminal.
			fmt.Fprintln(s.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cont, err := s.handleSlashCommand(ctx, line)
			if err != nil {
				DisplayError(os.Stderr, err, false)
			}
			if !cont {
				return nil
			}
			continue
		}

		fmt.Fprintln(s.out)
		if err := askOnce(ctx, s.ctrl, line, s.args, s.opts, s.out); err != nil && !errors.Is(err, session.ErrCancelled) {
			DisplayError(os.Stderr, err, false)
		}
		fmt.Fprintln(s.out)
	}
}

func (s *chatSession) printHeader() {
	snap := s.ctrl.Store().Snapshot()
	fmt.Fprintln(s.out, TitleStyle.Render(snap.Title))
	fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("chat %s | %d messages | /help for commands",
		snap.ChatID, len(snap.Messages))))
	fmt.Fprintln(s.out)

	if len(snap.Messages) > 0 {
		for _, msg := range snap.Messages {
			printMessage(s.out, msg, s.opts)
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const chatHelpText = `Commands:
  /new                    Start a new chat
  /open ID                Switch to an existing chat
  /chats                  List recent chats
  /rename TITLE           Rename the current chat
  /delete                 Delete the current chat and start a new one
  /export [md|json] [DIR] Export the current chat
  /thinking               Toggle the reasoning trace
  /sources                Toggle the sources list
  /status                 Show chat and stream statistics
  /quit                   Leave (also Ctrl+D)

Ctrl+C stops a streaming answer.`

// handleSlashCommand runs one slash command. It returns false to leave.
func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	rest := fields[1:]
	store := s.ctrl.Store()

	switch cmd {
	case "/quit", "/exit", "/q":
		return false, nil

	case "/help", "/h", "/?":
		fmt.Fprintln(s.out, chatHelpText)

	case "/new":
		return true, s.switchTo(ctx, "")

	case "/open":
		if len(rest) == 0 {
			return true, ErrMissingArgument("chat ID", "/open 1718031234567")
		}
		return true, s.switchTo(ctx, rest[0])

	case "/chats", "/list":
		chats, err := s.env.Client.ListChats(ctx, s.env.Config.Chat.ListLimit)
		if err != nil {
			return true, err
		}
		printChatList(s.out, chats)

	case "/rename", "/title":
		title := strings.TrimSpace(strings.Join(rest, " "))
		if title == "" {
			return true, ErrMissingArgument("title", "/rename Fusion notes")
		}
		if err := s.env.Client.RenameChat(ctx, store.ChatID(), title); err != nil {
			return true, err
		}
		store.SetTitle(title)
		fmt.Fprintf(s.out, "%s Renamed to %q\n", SuccessStyle.Render("[OK]"), title)

	case "/delete":
		id := store.ChatID()
		if err := s.env.Client.DeleteChat(ctx, id); err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "%s Deleted chat %s\n", SuccessStyle.Render("[OK]"), id)
		return true, s.switchTo(ctx, "")

	case "/export":
		format, dir := "markdown", "."
		if len(rest) > 0 {
			format = rest[0]
		}
		if len(rest) > 1 {
			dir = rest[1]
		}
		path, err := exportConversation(store.Conversation(), format, dir)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "%s Exported to %s\n", SuccessStyle.Render("[OK]"), path)

	case "/thinking":
		s.opts.ShowThinking = !s.opts.ShowThinking
		fmt.Fprintf(s.out, "Reasoning trace %s\n", onOff(s.opts.ShowThinking))

	case "/sources":
		s.opts.ShowSources = !s.opts.ShowSources
		fmt.Fprintf(s.out, "Sources %s\n", onOff(s.opts.ShowSources))

	case "/status":
		s.printStatus()

	default:
		return true, &ValidationError{Field: "command", Value: cmd, Reason: "unknown command", Example: "/help"}
	}
	return true, nil
}

// switchTo loads chatID, or a new chat when chatID is "".
func (s *chatSession) switchTo(ctx context.Context, chatID string) error {
	conv, err := s.env.OpenConversation(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.ctrl.Store().Load(conv); err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	s.printHeader()
	return nil
}

func (s *chatSession) printStatus() {
	snap := s.ctrl.Store().Snapshot()
	sum := s.env.Metrics.Summary()
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Chat"), snap.ChatID)
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Title"), snap.Title)
	fmt.Fprintf(s.out, "%s%d\n", RenderLabel("Messages"), len(snap.Messages))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Backend"), s.env.Client.BaseURL())
	fmt.Fprintf(s.out, "%s%d (%d committed, %d cancelled, %d failed)\n", RenderLabel("Responses"),
		sum.Total(),
		sum.Streams[session.StateCommitted.String()],
		sum.Streams[session.StateCancelled.String()],
		sum.Streams[session.StateFailed.String()])
	if sum.Dropped > 0 {
		fmt.Fprintf(s.out, "%s%d\n", RenderLabel("Dropped frames"), sum.Dropped)
	}
}

// exportConversation writes conv to dir in format and returns the path.
func exportConversation(conv *model.Conversation, format, dir string) (string, error) {
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return "", ErrUnsupportedFormat(format, export.Formats)
	}
	return export.ExportToFile(conv, exporter, opts)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
