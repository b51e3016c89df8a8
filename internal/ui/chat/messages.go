// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries the latest store snapshot into the update loop.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// ResultMsg reports how a Send ended.
type ResultMsg struct {
	Result session.Result
	Err    error
	// Text is the message that was sent.
	Text string
}

// chatOpenedMsg is the result of creating or fetching a chat.
type chatOpenedMsg struct {
	chat *api.Chat
	err  error
}

// chatsLoadedMsg is the result of listing chats.
type chatsLoadedMsg struct {
	chats []api.Chat
	err   error
}

// chatDeletedMsg is the result of deleting a chat from the list.
type chatDeletedMsg struct {
	id  string
	err error
}

// exportedMsg is the result of writing a transcript.
type exportedMsg struct {
	path string
	err  error
}

// noticeExpiredMsg clears a notice unless a newer one replaced it.
type noticeExpiredMsg struct {
	id int
}

// =============================================================================
// SNAPSHOT FEED
// =============================================================================

// snapshotFeed bridges Store listeners, which run on the streaming goroutine,
// into the Bubble Tea loop. Snapshots are coalesced: the loop always receives
// the newest one, at most once per interval.
type snapshotFeed struct {
	mu       sync.Mutex
	latest   session.Snapshot
	last     time.Time
	interval time.Duration
	signal   chan struct{}
}

func newSnapshotFeed(fps int) *snapshotFeed {
	if fps <= 0 {
		fps = 30
	}
	return &snapshotFeed{
		interval: time.Second / time.Duration(fps),
		signal:   make(chan struct{}, 1),
	}
}

// push is a session.Listener.
func (f *snapshotFeed) push(s session.Snapshot) {
	f.mu.Lock()
	f.latest = s
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// wait returns a command that blocks until a snapshot is available.
func (f *snapshotFeed) wait() tea.Cmd {
	return func() tea.Msg {
		<-f.signal

		// PERFORMANCE: cap redraws; anything pushed meanwhile is folded in.
		f.mu.Lock()
		delay := f.interval - time.Since(f.last)
		f.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.last = time.Now()
		return SnapshotMsg{Snapshot: f.latest}
	}
}
