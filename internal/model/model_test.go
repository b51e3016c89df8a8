// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Research Assistant"},
		{Role("other"), "other"},
	}

	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("Role(%q).DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestSource_Label(t *testing.T) {
	if got := (Source{Title: "  ", URL: "http://x"}).Label(); got != "http://x" {
		t.Errorf("Label() = %q, want %q", got, "http://x")
	}
	if got := (Source{Title: "X", URL: "http://x"}).Label(); got != "X" {
		t.Errorf("Label() = %q, want %q", got, "X")
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hello", 10, "hello"},
		{"collapses whitespace", "a\n\n  b", 10, "a b"},
		{"truncated", "abcdefghij", 6, "abc..."},
		{"multibyte", "héllo wörld", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Message{Content: tc.content}.Preview(tc.maxLen)
			if got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_NextIDMonotonicWithinTick(t *testing.T) {
	conv := NewConversation("c1", "")
	fixed := time.UnixMilli(1_700_000_000_000)
	conv.SetClock(func() time.Time { return fixed })

	a := conv.Append(Message{Role: RoleUser, Content: "a"})
	b := conv.Append(Message{Role: RoleAssistant, Content: "b"})

	if a.ID != fixed.UnixMilli() {
		t.Errorf("first id = %d, want %d", a.ID, fixed.UnixMilli())
	}
	if b.ID != a.ID+1 {
		t.Errorf("second id = %d, want %d", b.ID, a.ID+1)
	}
}

func TestConversation_AppendKeepsServerIDs(t *testing.T) {
	conv := NewConversationFromMessages("c1", "t", time.Time{}, []Message{
		{ID: 4, Role: RoleUser, Content: "q"},
		{ID: 5, Role: RoleAssistant, Content: "a"},
	})
	conv.SetClock(func() time.Time { return time.UnixMilli(3) })

	next := conv.Append(Message{Role: RoleUser, Content: "again"})
	if next.ID != 6 {
		t.Errorf("next id = %d, want 6", next.ID)
	}
	if conv.Len() != 3 {
		t.Errorf("Len() = %d, want 3", conv.Len())
	}
}

func TestConversation_MessagesAreCopies(t *testing.T) {
	conv := NewConversation("c1", "")
	conv.Append(Message{
		Role:    RoleAssistant,
		Content: "answer",
		Sources: []Source{{Title: "X", URL: "http://x"}},
	})

	msgs := conv.Messages()
	msgs[0].Content = "mutated"
	msgs[0].Sources[0].Title = "mutated"

	last, ok := conv.Last()
	if !ok {
		t.Fatal("Last() returned no message")
	}
	if last.Content != "answer" {
		t.Errorf("committed content changed to %q", last.Content)
	}
	if last.Sources[0].Title != "X" {
		t.Errorf("committed source changed to %q", last.Sources[0].Title)
	}
}

func TestConversation_EmptySourcesNormalized(t *testing.T) {
	conv := NewConversation("c1", "")
	msg := conv.Append(Message{Role: RoleAssistant, Sources: []Source{}})
	if msg.Sources != nil || msg.HasSources() {
		t.Errorf("Sources = %#v, want nil", msg.Sources)
	}
}

func TestConversation_GetTitle(t *testing.T) {
	conv := NewConversation("c1", "")
	if got := conv.GetTitle(); got != DefaultTitle {
		t.Errorf("GetTitle() = %q, want %q", got, DefaultTitle)
	}
	conv.SetTitle("Quantum networking")
	if got := conv.GetTitle(); got != "Quantum networking" {
		t.Errorf("GetTitle() = %q, want %q", got, "Quantum networking")
	}
}

func TestConversation_ClearKeepsIDsIncreasing(t *testing.T) {
	conv := NewConversation("c1", "")
	conv.SetClock(func() time.Time { return time.UnixMilli(100) })
	first := conv.Append(Message{Role: RoleUser, Content: "x"})
	conv.Clear()
	second := conv.Append(Message{Role: RoleUser, Content: "y"})
	if second.ID <= first.ID {
		t.Errorf("id after Clear = %d, want > %d", second.ID, first.ID)
	}
	if conv.CountRole(RoleUser) != 1 {
		t.Errorf("CountRole(user) = %d, want 1", conv.CountRole(RoleUser))
	}
}

func TestStreamStats_Format(t *testing.T) {
	s := StreamStats{Total: 2500 * time.Millisecond, Chunks: 42, FirstChunk: 234 * time.Millisecond, Dropped: 1}
	got := s.Format()
	for _, want := range []string{"2.5s", "42 chunks", "first chunk 234ms", "1 dropped"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() = %q, want to contain %q", got, want)
		}
	}
	if (StreamStats{}).Format() != "" {
		t.Error("Format() of zero stats should be empty")
	}
}
