// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the research chat backend.
//
// It covers the streaming message endpoint, whose body is handed to the
// stream decoder untouched, and the chat CRUD endpoints, which are plain
// request/JSON-response pairs. Any non-2xx status becomes an *APIError that
// matches ErrOperationFailed.
//
// # Key Types
//
//   - Client: Backend client with retries, rate limiting and request ids
//   - Chat: A chat with its committed messages
//   - APIError: Non-2xx response from the backend
//
// # Usage
//
//	client := api.NewClient("http://localhost:8000").WithTimeout(30 * time.Second)
//	chat, err := client.CreateChat(ctx, "")
//	if err != nil {
//	    return err
//	}
//	body, err := client.SendMessage(ctx, chat.ID, "What is retrieval augmented generation?")
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//	dec := stream.NewDecoder(body)
package api
