// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This test file covers argument parsing and exit code mapping.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/session"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--limit", "5"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "5" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "5")
				}
				if p.FlagIntOrDefault("limit", 10) != 5 {
					t.Errorf("FlagIntOrDefault(limit) = %d, want 5", p.FlagIntOrDefault("limit", 10))
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "--format=json", "42"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want json", p.Flag("format"))
				}
				if p.Positional(1) != "42" {
					t.Errorf("Positional(1) = %q, want 42", p.Positional(1))
				}
			},
		},
		{
			name:    "declared boolean does not swallow the next argument",
			args:    []string{"delete", "--yes", "1700000000000"},
			bools:   []string{"yes"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("yes") {
					t.Error("BoolFlag(yes) should be true")
				}
				if p.Positional(1) != "1700000000000" {
					t.Errorf("Positional(1) = %q, want the chat ID", p.Positional(1))
				}
			},
		},
		{
			name:    "undeclared flag takes a value",
			args:    []string{"delete", "--yes", "1700000000000"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("yes") != "1700000000000" {
					t.Errorf("Flag(yes) = %q", p.Flag("yes"))
				}
				if p.PositionalCount() != 1 {
					t.Errorf("PositionalCount() = %d, want 1", p.PositionalCount())
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"--metrics=false"},
			bools:   []string{"metrics"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("metrics") {
					t.Error("BoolFlag(metrics) should be false")
				}
				if !p.HasFlag("metrics") {
					t.Error("HasFlag(metrics) should be true")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"What", "does", "--", "--verbose", "mean?"},
			wantSub: "What",
			validate: func(t *testing.T, p *ArgParser) {
				if got := JoinPositionalArgs(p, 0); got != "What does --verbose mean?" {
					t.Errorf("JoinPositionalArgs = %q", got)
				}
			},
		},
		{
			name:    "short alias lookup",
			args:    []string{"export", "-o", "/tmp/out"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("output", "o") != "/tmp/out" {
					t.Errorf("Flag(output, o) = %q", p.Flag("output", "o"))
				}
			},
		},
		{
			name:    "empty args",
			args:    []string{},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(0) != "" || len(p.PositionalFrom(1)) != 0 {
					t.Error("expected no positionals")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "limit")
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIntWithValidation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"y", "YES", " true ", "1", "on"} {
		if v, err := ParseBoolString(s); err != nil || !v {
			t.Errorf("ParseBoolString(%q) = %v, %v; want true", s, v, err)
		}
	}
	for _, s := range []string{"n", "No", "false", "0", "off"} {
		if v, err := ParseBoolString(s); err != nil || v {
			t.Errorf("ParseBoolString(%q) = %v, %v; want false", s, v, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		wantErr  bool
		validate func(*testing.T, Args)
	}{
		{
			name:    "no args opens the TUI",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "ask joins the question",
			argv:    []string{"ask", "What", "is", "RAFT?"},
			wantCmd: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is RAFT?" {
					t.Errorf("Query = %q", a.Query)
				}
			},
		},
		{
			name:    "ask flags",
			argv:    []string{"--json", "ask", "--raw", "--no-thinking", "hello"},
			wantCmd: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if !a.JSON || !a.Raw || !a.NoThinking || a.NoSources {
					t.Errorf("flags = %+v", a)
				}
				if a.Query != "hello" {
					t.Errorf("Query = %q, want hello", a.Query)
				}
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"ask", "hi", "--url", "http://127.0.0.1:9000", "-v"},
			wantCmd: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.URL != "http://127.0.0.1:9000" || !a.Verbose {
					t.Errorf("URL = %q, Verbose = %v", a.URL, a.Verbose)
				}
				if a.Query != "hi" {
					t.Errorf("Query = %q, want hi", a.Query)
				}
			},
		},
		{
			name:    "chat with positional ID",
			argv:    []string{"--url=http://x:1", "chat", "1718031234567"},
			wantCmd: CmdChat,
			validate: func(t *testing.T, a Args) {
				if a.ChatID != "1718031234567" || a.URL != "http://x:1" {
					t.Errorf("ChatID = %q, URL = %q", a.ChatID, a.URL)
				}
			},
		},
		{
			name:    "chat flag wins over positional",
			argv:    []string{"chat", "--chat", "1", "2"},
			wantCmd: CmdChat,
			validate: func(t *testing.T, a Args) {
				if a.ChatID != "1" {
					t.Errorf("ChatID = %q, want 1", a.ChatID)
				}
			},
		},
		{
			name:    "chats defaults to list",
			argv:    []string{"chats"},
			wantCmd: CmdChats,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "list" || a.Format != "markdown" {
					t.Errorf("Subcommand = %q, Format = %q", a.Subcommand, a.Format)
				}
			},
		},
		{
			name:    "chats delete with yes",
			argv:    []string{"chats", "delete", "--yes", "42"},
			wantCmd: CmdChats,
			validate: func(t *testing.T, a Args) {
				if !a.Yes || len(a.Positional) != 1 || a.Positional[0] != "42" {
					t.Errorf("Yes = %v, Positional = %v", a.Yes, a.Positional)
				}
			},
		},
		{
			name:    "chats export options",
			argv:    []string{"chats", "export", "42", "--format", "JSON", "-o", "out"},
			wantCmd: CmdChats,
			validate: func(t *testing.T, a Args) {
				if a.Format != "json" || a.Output != "out" {
					t.Errorf("Format = %q, Output = %q", a.Format, a.Output)
				}
			},
		},
		{
			name:    "chats list bad limit",
			argv:    []string{"chats", "list", "--limit", "0"},
			wantCmd: CmdChats,
			wantErr: true,
		},
		{
			name:    "serve flags",
			argv:    []string{"serve", "--addr", ":9000", "--delay", "0", "--no-metrics"},
			wantCmd: CmdServe,
			validate: func(t *testing.T, a Args) {
				if a.Addr != ":9000" || a.DelayMs != 0 {
					t.Errorf("Addr = %q, DelayMs = %d", a.Addr, a.DelayMs)
				}
				if a.Metrics == nil || *a.Metrics {
					t.Errorf("Metrics = %v, want explicit false", a.Metrics)
				}
			},
		},
		{
			name:    "serve defaults",
			argv:    []string{"serve"},
			wantCmd: CmdServe,
			validate: func(t *testing.T, a Args) {
				if a.DelayMs != -1 || a.Metrics != nil {
					t.Errorf("DelayMs = %d, Metrics = %v", a.DelayMs, a.Metrics)
				}
			},
		},
		{
			name:    "serve negative delay",
			argv:    []string{"serve", "--delay", "-5"},
			wantCmd: CmdServe,
			wantErr: true,
		},
		{
			name:    "config set",
			argv:    []string{"config", "set", "ui.theme", "light"},
			wantCmd: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "set" || strings.Join(a.Positional, " ") != "ui.theme light" {
					t.Errorf("Subcommand = %q, Positional = %v", a.Subcommand, a.Positional)
				}
			},
		},
		{
			name:    "config init force",
			argv:    []string{"config", "init", "--force"},
			wantCmd: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if !a.Yes {
					t.Error("Yes should be set by --force")
				}
			},
		},
		{
			name:    "version",
			argv:    []string{"--version"},
			wantCmd: CmdVersion,
		},
		{
			name:    "help",
			argv:    []string{"-h"},
			wantCmd: CmdHelp,
		},
		{
			name:    "unknown command",
			argv:    []string{"frobnicate"},
			wantCmd: CmdHelp,
			wantErr: true,
		},
		{
			name:    "missing flag value",
			argv:    []string{"ask", "hi", "--url"},
			wantCmd: CmdHelp,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseArgs(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArgs(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
			if cmd != tt.wantCmd {
				t.Errorf("command = %s, want %s", cmd, tt.wantCmd)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("limit", "0", "must be positive"), ExitUsageError},
		{"empty message", session.ErrEmptyMessage, ExitUsageError},
		{"too long", fmt.Errorf("send: %w", session.ErrMessageTooLong), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}), ExitConfigError},
		{"cancelled", session.ErrCancelled, ExitCancelled},
		{"not found", NewCommandError("chats", "show", &api.APIError{Op: "get chat", Status: 404}), ExitNotFoundError},
		{"http failure", &api.APIError{Op: "list chats", Status: 500}, ExitServerError},
		{"server error chunk", &session.ServerError{Message: "search backend unavailable"}, ExitServerError},
		{"incomplete stream", session.ErrIncompleteStream, ExitServerError},
		{"deadline", fmt.Errorf("list: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ExitNetworkError},
		{"transport", &session.TransportError{Err: errors.New("unexpected EOF")}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "format", Value: "pdf", Reason: "unsupported format", Example: "markdown, json"}
	msg := err.Error()
	for _, want := range []string{"invalid format", "(got: pdf)", "Example: markdown, json"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
