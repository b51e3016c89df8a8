// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and top-level command handlers.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdChats
	CmdServe
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdChats:
		return "chats"
	case CmdServe:
		return "serve"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Quiet      bool
	Verbose    bool
	URL        string // overrides api.base_url
	ChatID     string // chat to open instead of creating one
	ConfigPath string // explicit config file

	// ask
	Query      string
	Raw        bool // no markdown rendering
	NoThinking bool
	NoSources  bool

	// chats / config
	Subcommand string
	Positional []string // positionals after the subcommand
	Yes        bool
	Format     string
	Output     string
	Limit      int

	// serve
	Addr    string
	DelayMs int   // -1 when unset
	Metrics *bool // nil when unset

	// Rest holds the arguments after the command name
	Rest []string
}

const usageText = `research - streaming research assistant for the terminal

USAGE:
  research [global flags] [command] [args]

COMMANDS:
  (none), tui          Open the full-screen chat interface
  ask QUESTION         Ask one question and stream the answer to stdout
  chat [CHAT_ID]       Line-mode conversation with input history
  chats [SUBCOMMAND]   Manage stored chats
  serve                Run the bundled development backend
  config [SUBCOMMAND]  Show or change configuration
  version              Show version information
  help                 Show this help

GLOBAL FLAGS:
  --url URL            Backend base URL (overrides api.base_url)
  --chat ID            Open an existing chat (tui, ask, chat)
  --config FILE        Load configuration from FILE
  --json               Machine-readable output
  -q, --quiet          Print only the answer
  -v, --verbose        Mirror the log to stderr

ASK FLAGS:
  --raw                Do not render markdown
  --no-thinking        Hide the reasoning trace
  --no-sources         Hide the sources list

CHATS SUBCOMMANDS:
  list [--limit N]                     List chats, newest first
  show ID                              Print a chat transcript
  rename ID TITLE                      Rename a chat
  delete ID [--yes]                    Delete a chat
  clear --yes                          Delete every chat
  export ID [--format F] [--output P]  Export a chat (markdown, json)

SERVE FLAGS:
  --addr HOST:PORT     Listen address (default from serve.addr)
  --delay MS           Delay between streamed tokens
  --metrics            Expose /metrics
  --no-metrics         Do not expose /metrics

CONFIG SUBCOMMANDS:
  show                 Print the effective configuration
  path                 Print the config file path
  init [--force]       Write a default config file
  get KEY              Print one value (e.g. ui.show_thinking)
  set KEY VALUE        Change one value and save
  keys                 List every key
  env                  List recognized environment variables

EXAMPLES:
  research
  research ask "What changed in the latest Go release?"
  research --json ask "Summarize today's fusion news" > answer.json
  research chat --chat 1718031234567
  research chats list --limit 10
  research chats export 1718031234567 --format json --output ./exports
  research serve --addr 127.0.0.1:8000 --delay 20
  research config set ui.theme light

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("research version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args. Usage errors print to stderr and exit with
// ExitUsageError.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n\nRun 'research help' for usage.\n", ErrorStyle.Render("[ERROR]"), err)
		os.Exit(ExitUsageError)
	}
	return cmd, args
}

// ParseArgs parses argv without touching the process.
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, parsed, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, parsed, err
	}

	if len(remaining) == 0 {
		return CmdTUI, parsed, nil
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	parsed.Rest = rest

	switch name {
	case "tui":
		return CmdTUI, parsed, nil

	case "ask", "a":
		err := parseAskArgs(&parsed, rest)
		return CmdAsk, parsed, err

	case "chat":
		p := NewArgParser(rest)
		if parsed.ChatID == "" {
			parsed.ChatID = p.Positional(0)
		}
		return CmdChat, parsed, nil

	case "chats", "history":
		err := parseChatsArgs(&parsed, rest)
		return CmdChats, parsed, err

	case "serve", "server":
		err := parseServeArgs(&parsed, rest)
		return CmdServe, parsed, err

	case "config":
		p := NewArgParser(rest, "force", "yes")
		parsed.Subcommand = strings.ToLower(p.Subcommand())
		if parsed.Subcommand == "" {
			parsed.Subcommand = "show"
		}
		parsed.Positional = p.PositionalFrom(1)
		parsed.Yes = p.BoolFlag("force", "yes")
		return CmdConfig, parsed, nil

	case "version", "--version":
		return CmdVersion, parsed, nil

	case "help", "-h", "--help":
		return CmdHelp, parsed, nil

	default:
		return CmdHelp, parsed, fmt.Errorf("unknown command %q", remaining[0])
	}
}

// parseGlobalFlags extracts global flags from anywhere in args and returns
// the rest. Parsing stops at "--".
func parseGlobalFlags(args []string) ([]string, Args, error) {
	var remaining []string
	parsed := Args{DelayMs: -1}

	valueFlags := map[string]*string{
		"--url":    &parsed.URL,
		"--chat":   &parsed.ChatID,
		"--config": &parsed.ConfigPath,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}

		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
			continue
		case "-v", "--verbose":
			parsed.Verbose = true
			continue
		case "--json":
			parsed.JSON = true
			continue
		}

		name, value, inline := strings.Cut(arg, "=")
		if dst, ok := valueFlags[name]; ok {
			if !inline {
				if i+1 >= len(args) {
					return nil, parsed, ErrMissingArgument(strings.TrimLeft(name, "-"), name+" VALUE")
				}
				i++
				value = args[i]
			}
			*dst = value
			continue
		}

		remaining = append(remaining, arg)
	}

	return remaining, parsed, nil
}

func parseAskArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "raw", "no-thinking", "no-sources")
	args.Raw = p.BoolFlag("raw")
	args.NoThinking = p.BoolFlag("no-thinking")
	args.NoSources = p.BoolFlag("no-sources")
	args.Query = strings.TrimSpace(JoinPositionalArgs(p, 0))
	return nil
}

func parseChatsArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "yes", "y")
	args.Subcommand = strings.ToLower(p.Subcommand())
	if args.Subcommand == "" {
		args.Subcommand = "list"
	}
	args.Positional = p.PositionalFrom(1)
	args.Yes = p.BoolFlag("yes", "y")
	args.Format = strings.ToLower(p.FlagOrDefault("format", "markdown"))
	args.Output = p.Flag("output", "o")

	if p.HasFlag("limit") {
		n, err := ParseIntWithValidation(p.Flag("limit"), "limit")
		if err != nil {
			return err
		}
		args.Limit = n
	}
	return nil
}

func parseServeArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "metrics", "no-metrics")
	args.Addr = p.Flag("addr")
	if p.HasFlag("delay") {
		n, err := strconv.Atoi(p.Flag("delay"))
		if err != nil || n < 0 {
			return NewValidationError("delay", p.Flag("delay"), "must be a non-negative number of milliseconds")
		}
		args.DelayMs = n
	}
	switch {
	case p.BoolFlag("no-metrics"):
		off := false
		args.Metrics = &off
	case p.BoolFlag("metrics"):
		on := true
		args.Metrics = &on
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// HandleAsk runs the ask command and exits on failure.
func HandleAsk(args Args) {
	ctx, stop := signalContext()
	defer stop()
	exitOnError(RunAsk(ctx, args, os.Stdout), args)
}

// HandleChat runs the line-mode chat.
func HandleChat(args Args) {
	exitOnError(RunChat(context.Background(), args), args)
}

// HandleChats runs a chats subcommand.
func HandleChats(args Args) {
	ctx, stop := signalContext()
	defer stop()
	exitOnError(RunChats(ctx, args, os.Stdout), args)
}

// HandleServe runs the development backend until interrupted.
func HandleServe(args Args) {
	ctx, stop := signalContext()
	defer stop()
	exitOnError(RunServe(ctx, args), args)
}

// HandleConfig runs a config subcommand.
func HandleConfig(args Args) {
	exitOnError(RunConfig(args, os.Stdout), args)
}

// HandleVersion prints version information.
func HandleVersion(args Args) {
	if args.JSON {
		_ = writeJSON(os.Stdout, "version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go":         runtime.Version(),
		})
		return
	}
	PrintVersion()
}

// HandleHelp prints usage.
func HandleHelp() {
	PrintUsage()
}

func exitOnError(err error, args Args) {
	if err == nil {
		return
	}
	HandleErrorAndExit(err, args.JSON)
}
