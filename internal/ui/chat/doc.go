// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface.

The interface is a view over a session.Store. A session.Controller runs
every send on its own goroutine and writes chunks into the store; the store
publishes snapshots, which are coalesced to the configured frame rate and
delivered to the Bubble Tea loop as SnapshotMsg. The model itself never
edits the conversation.

# Key Types

  - Model: the Bubble Tea model (header, transcript viewport, input, status bar)
  - Options: backend, controller, theme and UI settings
  - Backend: chat CRUD calls the interface makes directly
  - KeyMap: keyboard bindings

# Keys

	Enter   send (rejected with a notice while a response is streaming)
	Esc     stop the active response
	Ctrl+N  new chat
	Ctrl+L  recent chats (Enter opens, Ctrl+D deletes, Esc returns)
	Ctrl+E  export the chat as Markdown
	Ctrl+C  quit

# Usage

	store := session.NewStore(nil)
	ctrl := session.NewController(store, client)
	m := chat.New(chat.Options{Backend: client, Controller: ctrl, UI: cfg.UI})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
