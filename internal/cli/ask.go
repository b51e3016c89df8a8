// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Command: ask [question]
// Short:   Ask a single question and stream the answer
//
// Examples:
//   research ask "What is the status of the Artemis program?"
//   echo "Summarize this week's AI news" | research ask
//   research --json ask "Latest fusion results" > answer.json
//   research ask --raw --no-thinking "Explain RAFT" | less
//
// The answer streams to stdout as it arrives when output is piped or
// --raw is given. On a terminal with markdown enabled, progress shows on
// stderr and the rendered answer is printed once it completes. Ctrl+C
// stops the response and exits with status 130.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
)

// maxStdinQuestion bounds a question read from a pipe.
const maxStdinQuestion = 1 << 20

// askOutput is the --json payload for ask.
type askOutput struct {
	ChatID   string         `json:"chat_id"`
	Title    string         `json:"title"`
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Thinking string         `json:"thinking,omitempty"`
	Sources  []model.Source `json:"sources"`
	Stats    askStats       `json:"stats"`
}

type askStats struct {
	DurationMs   int64 `json:"duration_ms"`
	FirstChunkMs int64 `json:"first_chunk_ms"`
	Chunks       int   `json:"chunks"`
	Dropped      int   `json:"dropped"`
}

// RunAsk asks args.Query (or stdin when no question is given and stdin is
// a pipe) and writes the answer to w.
func RunAsk(ctx context.Context, args Args, w io.Writer) error {
	query := args.Query
	if query == "" && !IsTTY() {
		q, err := readQuestion(os.Stdin)
		if err != nil {
			return err
		}
		query = q
	}
	if strings.TrimSpace(query) == "" {
		return ErrMissingArgument("question", `research ask "What is new in fusion research?"`)
	}

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
		return NewCommandError("ask", "open chat", err)
	}
	ctrl := env.NewController(conv)

	opts := printOptions{
		Markdown:     env.Config.UI.Markdown && !args.Raw && IsStdoutTTY(),
		ShowThinking: env.Config.UI.ShowThinking && !args.NoThinking,
		ShowSources:  env.Config.UI.ShowSources && !args.NoSources,
		ShowStats:    env.Config.UI.ShowStats,
	}
	return askOnce(ctx, ctrl, query, args, opts, w)
}

// askOnce runs one question through ctrl and prints the outcome. It is
// shared by ask and the line-mode chat.
func askOnce(ctx context.Context, ctrl *session.Controller, query string, args Args, opts printOptions, w io.Writer) error {
	var live *liveWriter
	if !args.JSON {
		live = newLiveWriter(w, os.Stderr, opts, args.Quiet)
		unsubscribe := ctrl.Store().Subscribe(live.update)
		defer unsubscribe()
	}

	res, err := ctrl.Send(ctx, query)

	if live != nil {
		live.finish()
	}

	switch {
	case res.State == session.StateCommitted:
		if args.JSON {
			snap := ctrl.Store().Snapshot()
			return writeJSON(w, "ask", askOutput{
				ChatID:   snap.ChatID,
				Title:    snap.Title,
				Question: res.User.Content,
				Answer:   res.Message.Content,
				Thinking: res.Message.Thinking,
				Sources:  nonNilSources(res.Message.Sources),
				Stats: askStats{
					DurationMs:   res.Stats.Total.Milliseconds(),
					FirstChunkMs: res.Stats.FirstChunk.Milliseconds(),
					Chunks:       res.Stats.Chunks,
					Dropped:      res.Stats.Dropped,
				},
			})
		}
		live.commit(res.Message)
		if opts.ShowStats && !args.Quiet {
			fmt.Fprintln(os.Stderr, DimStyle.Render(res.Stats.Format()))
		}
		return nil

	case res.State == session.StateCancelled:
		if !args.JSON {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("[Cancelled]"))
		}
		return session.ErrCancelled

	default:
		return err
	}
}

func nonNilSources(src []model.Source) []model.Source {
	if src == nil {
		return []model.Source{}
	}
	return src
}

func readQuestion(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(bufio.NewReader(r), maxStdinQuestion))
	if err != nil {
		return "", fmt.Errorf("failed to read question from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// LIVE OUTPUT
// =============================================================================

// liveWriter turns store snapshots into incremental terminal output.
// Snapshots carry the full text so far; only the unseen suffix is written.
// Listeners run one at a time, so no locking is needed.
type liveWriter struct {
	out    io.Writer // answer text
	status io.Writer // thinking and progress
	opts   printOptions
	quiet  bool

	gen          uint64
	printed      int
	lastThinking string
	started      bool
	openLine     bool
}

func newLiveWriter(out, status io.Writer, opts printOptions, quiet bool) *liveWriter {
	return &liveWriter{out: out, status: status, opts: opts, quiet: quiet}
}

func (l *liveWriter) update(snap session.Snapshot) {
	if !snap.State.Active() {
		return
	}
	if snap.Generation != l.gen {
		l.gen = snap.Generation
		l.printed = 0
		l.lastThinking = ""
		l.started = false
		l.openLine = false
	}

	if snap.Thinking != "" && snap.Thinking != l.lastThinking {
		l.lastThinking = snap.Thinking
		if l.opts.ShowThinking && !l.quiet {
			fmt.Fprintln(l.status, DimStyle.Render("  > "+snap.Thinking))
		}
	}

	// Markdown is rendered once at commit; stream raw text otherwise.
	if l.opts.Markdown {
		return
	}
	if len(snap.Streaming) > l.printed {
		if !l.started && l.opts.ShowThinking && l.lastThinking != "" && !l.quiet {
			fmt.Fprintln(l.status)
		}
		l.started = true
		fmt.Fprint(l.out, snap.Streaming[l.printed:])
		l.printed = len(snap.Streaming)
		l.openLine = !strings.HasSuffix(snap.Streaming, "\n")
	}
}

// finish terminates a partially streamed line.
func (l *liveWriter) finish() {
	if l.openLine {
		fmt.Fprintln(l.out)
		l.openLine = false
	}
}

// commit prints what the live stream could not: the rendered answer in
// markdown mode, and the sources.
func (l *liveWriter) commit(msg model.Message) {
	switch {
	case l.opts.Markdown:
		fmt.Fprint(l.out, renderMarkdown(msg.Content))
	case l.printed == 0 && msg.Content != "":
		printAnswer(l.out, msg.Content, l.opts)
	}
	if l.opts.ShowSources && !l.quiet {
		printSources(l.out, msg.Sources)
	}
}
