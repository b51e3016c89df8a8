// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
)

// =============================================================================
// STATE
// =============================================================================

// State is the position of the fold in a stream's lifecycle.
//
// Committed, Cancelled and Failed are resting states: like Idle they accept a
// new stream, and they record how the previous one ended.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCommitted
	StateCancelled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether a stream is outstanding.
func (s State) Active() bool {
	return s == StateSending || s == StateStreaming
}

// =============================================================================
// FOLD
// =============================================================================

// Draft is the content of a message about to be committed.
type Draft struct {
	Content  string
	Sources  []model.Source
	Thinking string
}

// Step describes what a single Apply did.
type Step struct {
	// Changed is set when visible state changed.
	Changed bool

	// Commit is set when a complete chunk finalized the answer.
	Commit *Draft
}

// Fold accumulates the chunks of one stream at a time.
// The zero value is an Idle fold.
type Fold struct {
	state State
	err   error

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	text     strings.Builder
	thinking string

	// Captured by done, attached only at commit.
	pendingSources  []model.Source
	pendingThinking string
}

// State returns the current state.
func (f *Fold) State() State {
	return f.state
}

// Text returns the running answer text.
func (f *Fold) Text() string {
	return f.text.String()
}

// ThinkingView returns the latest live thinking snapshot.
func (f *Fold) ThinkingView() string {
	return f.thinking
}

// Err returns the failure that ended the last stream, if it failed.
func (f *Fold) Err() error {
	return f.err
}

// Begin starts a new stream. It fails with ErrStreamActive while another
// stream is Sending or Streaming.
func (f *Fold) Begin() error {
	if f.state.Active() {
		return ErrStreamActive
	}
	f.reset()
	f.err = nil
	f.state = StateSending
	return nil
}

// Apply folds one chunk. Chunks arriving while no stream is active are
// ignored, which makes a repeated complete a no-op.
func (f *Fold) Apply(c stream.Chunk) Step {
	if !f.state.Active() {
		return Step{}
	}

	switch c := c.(type) {
	case stream.Text:
		if c.Content == "" {
			return Step{}
		}
		f.text.WriteString(c.Content)
		f.state = StateStreaming
		return Step{Changed: true}

	case stream.Thinking:
		if c.Content == "" {
			return Step{}
		}
		f.thinking = c.Content
		f.state = StateStreaming
		return Step{Changed: true}

	case stream.Done:
		if c.Sources != nil {
			f.pendingSources = c.Sources
		}
		if c.Thinking != "" {
			f.pendingThinking = c.Thinking
		}
		return Step{}

	case stream.Complete:
		draft := Draft{
			Content:  f.text.String(),
			Thinking: f.pendingThinking,
		}
		if len(f.pendingSources) > 0 {
			draft.Sources = append([]model.Source(nil), f.pendingSources...)
		}
		f.reset()
		f.state = StateCommitted
		return Step{Changed: true, Commit: &draft}

	case stream.Error:
		f.Fail(&ServerError{Message: c.Message})
		return Step{Changed: true}

	default:
		panic(fmt.Sprintf("session: unhandled chunk type %T", c))
	}
}

// Cancel discards the transient buffers of an active stream.
// It reports false when there was nothing to cancel.
func (f *Fold) Cancel() bool {
	if !f.state.Active() {
		return false
	}
	f.reset()
	f.state = StateCancelled
	return true
}

// Fail ends an active stream with err, discarding the transient buffers.
func (f *Fold) Fail(err error) bool {
	if !f.state.Active() {
		return false
	}
	f.reset()
	f.err = err
	f.state = StateFailed
	return true
}

func (f *Fold) reset() {
	f.text.Reset()
	f.thinking = ""
	f.pendingSources = nil
	f.pendingThinking = ""
}
