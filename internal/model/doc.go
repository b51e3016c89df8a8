// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the stream decoder,
// the session store, the HTTP client and the renderers.
//
// # Key Types
//
//   - Conversation: Ordered, append-only list of committed messages for one chat
//   - Message: Immutable committed message with optional sources and thinking
//   - Source: A cited search result (title and URL)
//   - Role: Message role enumeration (user, assistant)
//   - StreamStats: Timing and counts recorded for a single stream attempt
//
// # Usage
//
// Create a conversation and append messages:
//
//	conv := model.NewConversation(chatID, "New Chat")
//	user := conv.Append(model.Message{Role: model.RoleUser, Content: "Hello!"})
//	fmt.Println(user.ID) // timestamp-derived, strictly increasing
//
// Messages returned by a Conversation are copies; mutating them never
// changes the committed history.
package model
