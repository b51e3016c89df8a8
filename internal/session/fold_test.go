// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
)

// =============================================================================
// FOLD TESTS
// =============================================================================

func startedFold(t *testing.T) *Fold {
	t.Helper()
	f := &Fold{}
	require.NoError(t, f.Begin())
	require.Equal(t, StateSending, f.State())
	return f
}

func TestFold_TextIsConcatenatedInOrder(t *testing.T) {
	tests := [][]string{
		{"a"},
		{"Hel", "lo", ", ", "world"},
		{"日本", "語", " ✓"},
		{"", "x", ""},
	}

	for _, parts := range tests {
		f := startedFold(t)
		for _, p := range parts {
			f.Apply(stream.Text{Content: p})
		}
		assert.Equal(t, strings.Join(parts, ""), f.Text())
	}
}

func TestFold_ThinkingReplaces(t *testing.T) {
	f := startedFold(t)
	f.Apply(stream.Thinking{Content: "a"})
	f.Apply(stream.Thinking{Content: "ab"})

	assert.Equal(t, "ab", f.ThinkingView())
	assert.Equal(t, StateStreaming, f.State())
}

func TestFold_FirstContentMovesToStreaming(t *testing.T) {
	f := startedFold(t)

	step := f.Apply(stream.Text{Content: ""})
	assert.False(t, step.Changed)
	assert.Equal(t, StateSending, f.State())

	step = f.Apply(stream.Text{Content: "x"})
	assert.True(t, step.Changed)
	assert.Equal(t, StateStreaming, f.State())
}

func TestFold_DoneIsHeldUntilComplete(t *testing.T) {
	f := startedFold(t)
	f.Apply(stream.Text{Content: "Hi"})
	step := f.Apply(stream.Done{
		Sources:  []model.Source{{Title: "X", URL: "http://x"}},
		Thinking: "searched",
	})
	assert.False(t, step.Changed)
	assert.Nil(t, step.Commit)
	assert.Empty(t, f.ThinkingView(), "done must not touch the live thinking view")

	step = f.Apply(stream.Complete{})
	require.NotNil(t, step.Commit)
	assert.Equal(t, Draft{
		Content:  "Hi",
		Sources:  []model.Source{{Title: "X", URL: "http://x"}},
		Thinking: "searched",
	}, *step.Commit)
	assert.Equal(t, StateCommitted, f.State())
	assert.Empty(t, f.Text())
}

func TestFold_LastDoneWins(t *testing.T) {
	f := startedFold(t)
	f.Apply(stream.Done{Sources: []model.Source{{Title: "A"}}, Thinking: "first"})
	f.Apply(stream.Done{Thinking: "second"})
	f.Apply(stream.Done{Sources: []model.Source{}})

	step := f.Apply(stream.Complete{})
	require.NotNil(t, step.Commit)
	assert.Nil(t, step.Commit.Sources, "an explicit empty list clears earlier sources")
	assert.Equal(t, "second", step.Commit.Thinking)
}

func TestFold_CompleteWithoutText(t *testing.T) {
	f := startedFold(t)
	step := f.Apply(stream.Complete{})
	require.NotNil(t, step.Commit)
	assert.Equal(t, "", step.Commit.Content)
	assert.Nil(t, step.Commit.Sources)
	assert.Equal(t, "", step.Commit.Thinking)
}

func TestFold_SecondCompleteIsNoop(t *testing.T) {
	f := startedFold(t)
	f.Apply(stream.Text{Content: "x"})
	first := f.Apply(stream.Complete{})
	second := f.Apply(stream.Complete{})

	assert.NotNil(t, first.Commit)
	assert.Nil(t, second.Commit)
	assert.False(t, second.Changed)
	assert.Equal(t, StateCommitted, f.State())
}

func TestFold_ErrorChunkFails(t *testing.T) {
	f := startedFold(t)
	f.Apply(stream.Text{Content: "partial"})
	f.Apply(stream.Error{Message: "Error: rate limited"})

	assert.Equal(t, StateFailed, f.State())
	assert.Empty(t, f.Text())
	var serr *ServerError
	require.ErrorAs(t, f.Err(), &serr)
	assert.Equal(t, "Error: rate limited", serr.Message)

	// Anything after the error is ignored.
	step := f.Apply(stream.Complete{})
	assert.Nil(t, step.Commit)
}

func TestFold_CancelAndFail(t *testing.T) {
	f := &Fold{}
	assert.False(t, f.Cancel(), "cancel while idle is a no-op")
	assert.False(t, f.Fail(ErrIncompleteStream))

	f = startedFold(t)
	f.Apply(stream.Text{Content: "he"})
	f.Apply(stream.Thinking{Content: "thinking"})
	assert.True(t, f.Cancel())
	assert.Equal(t, StateCancelled, f.State())
	assert.Empty(t, f.Text())
	assert.Empty(t, f.ThinkingView())
	assert.False(t, f.Cancel(), "second cancel is a no-op")

	require.NoError(t, f.Begin())
	assert.True(t, f.Fail(ErrIncompleteStream))
	assert.ErrorIs(t, f.Err(), ErrIncompleteStream)
}

func TestFold_BeginWhileActive(t *testing.T) {
	f := startedFold(t)
	assert.ErrorIs(t, f.Begin(), ErrStreamActive)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, StateSending.Active())
	assert.False(t, StateFailed.Active())
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"short", "What is RAG?", "What is RAG?"},
		{"collapses whitespace", "  what\n\tis   this  ", "what is this"},
		{"exactly forty", strings.Repeat("a", 40), strings.Repeat("a", 40)},
		{
			"cuts at word boundary",
			"What are the latest developments in quantum error correction research",
			"What are the latest developments in...",
		},
		{
			"hard cut when no late space",
			"Supercalifragilisticexpialidocious-and-more-words-here",
			"Supercalifragilisticexpialidocious-and-m...",
		},
		{"empty", "   ", model.DefaultTitle},
		{"decomposed accent", "Café prices", "Café prices"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GenerateTitle(tc.query))
		})
	}
}
