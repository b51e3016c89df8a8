// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session folds a streamed answer into a conversation.
//
// A chat has one Store holding the committed messages and the transient
// buffers of the answer being streamed. A Controller drives one stream at a
// time: it submits the user's text, opens the transport, decodes chunks and
// applies them to the Store in arrival order.
//
// # Key Types
//
//   - Fold: The per-chunk state machine (Idle, Sending, Streaming, Committed, Cancelled, Failed)
//   - Store: Conversation plus fold, with Subscribe for renderers
//   - Controller: Runs a stream attempt and owns its cancellation handle
//   - Handle: Abort capability bound to a single stream generation
//
// # Usage
//
//	store := session.NewStore(model.NewConversation(chat.ID, chat.Title))
//	unsubscribe := store.Subscribe(func(s session.Snapshot) {
//	    render(s) // pure function of the snapshot
//	})
//	defer unsubscribe()
//
//	ctrl := session.NewController(store, client)
//	result, err := ctrl.Send(ctx, "What changed in Go 1.24?")
//	if errors.Is(err, session.ErrCancelled) {
//	    // user pressed Esc
//	}
//
// Each stream attempt gets a new generation number. Chunks, failures and
// aborts tagged with an older generation are ignored, so a late callback from
// a superseded stream can never touch a newer one.
package session
