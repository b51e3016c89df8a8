// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
)

// =============================================================================
// RESPONDER
// =============================================================================

// Prompt is what a responder answers.
type Prompt struct {
	ChatID  string
	Content string

	// History holds the chat's messages before this one.
	History []model.Message
}

// EmitFunc writes one chunk to the client. It returns an error once the
// client is gone; responders should stop at that point.
type EmitFunc func(stream.Chunk) error

// Responder produces the streamed answer to a prompt. It emits text,
// thinking and done chunks; the server adds complete after it returns nil.
// A returned error is sent to the client as an error chunk.
type Responder interface {
	Respond(ctx context.Context, p Prompt, emit EmitFunc) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, p Prompt, emit EmitFunc) error

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, p Prompt, emit EmitFunc) error {
	return f(ctx, p, emit)
}

// =============================================================================
// ECHO RESPONDER
// =============================================================================

// searchKeywords mark questions about current events.
var searchKeywords = []string{
	"current", "latest", "recent", "today", "now", "this year",
	"who is", "what is the current", "president", "ceo", "news", "weather",
	"stock price", "score", "winner", "election", "update", "right now",
}

// ShouldSearch reports whether a question looks like it needs fresh results.
func ShouldSearch(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range searchKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// EchoResponder answers with canned text built from the question. It streams
// the same phases a real research backend does, spaced by Delay per word.
type EchoResponder struct {
	Delay time.Duration
}

// NewEchoResponder creates an EchoResponder.
func NewEchoResponder(delay time.Duration) *EchoResponder {
	return &EchoResponder{Delay: delay}
}

// Respond streams thinking, the answer word by word, then done.
func (r *EchoResponder) Respond(ctx context.Context, p Prompt, emit EmitFunc) error {
	search := ShouldSearch(p.Content)
	if search {
		if err := emit(stream.Thinking{Content: "Searching the web..."}); err != nil {
			return err
		}
		if err := sleep(ctx, 4*r.Delay); err != nil {
			return err
		}
	}
	if err := emit(stream.Thinking{Content: "Composing answer..."}); err != nil {
		return err
	}

	answer := composeAnswer(p, search)
	for _, word := range strings.SplitAfter(answer, " ") {
		if word == "" {
			continue
		}
		if err := sleep(ctx, r.Delay); err != nil {
			return err
		}
		if err := emit(stream.Text{Content: word}); err != nil {
			return err
		}
	}

	sources := ExtractSources(answer)
	thinking := "Answered from knowledge base"
	if search {
		thinking = fmt.Sprintf("Web search executed\nFound %d sources\nSynthesized current information", len(sources))
	}
	return emit(stream.Done{Sources: sources, Thinking: thinking})
}

func composeAnswer(p Prompt, search bool) string {
	question := strings.Join(strings.Fields(p.Content), " ")
	turn := 1
	for _, m := range p.History {
		if m.Role == model.RoleUser {
			turn++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You asked: %q. ", question)
	if turn > 1 {
		fmt.Fprintf(&b, "This is question %d in this chat. ", turn)
	}
	b.WriteString("This development backend has no model attached, so the answer is a placeholder.")
	if search {
		q := strings.ReplaceAll(question, " ", "+")
		fmt.Fprintf(&b, " Recent coverage is available from [Example News](https://news.example.com/search?q=%s)", q)
		b.WriteString(" and [Example Encyclopedia](https://encyclopedia.example.org/wiki/Main_Page).")
	}
	return b.String()
}

// sourcePattern matches markdown links.
var sourcePattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// ExtractSources collects markdown links in order of appearance. The result
// is never nil, so a done chunk built from it always carries a source list.
func ExtractSources(text string) []model.Source {
	matches := sourcePattern.FindAllStringSubmatch(text, -1)
	sources := make([]model.Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, model.Source{Title: m[1], URL: m[2]})
	}
	return sources
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
