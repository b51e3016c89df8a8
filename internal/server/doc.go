// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides an in-memory research backend for local
// development and integration tests.
//
// Endpoints:
//   - GET    /                        - Liveness
//   - POST   /api/chat                - Create a chat
//   - GET    /api/chats?limit=N       - Most recently updated chats
//   - DELETE /api/chats               - Delete every chat
//   - GET    /api/chat/{id}           - Chat with messages
//   - PATCH  /api/chat/{id}           - Rename
//   - DELETE /api/chat/{id}           - Delete
//   - POST   /api/chat/{id}/message   - Send a message, streamed response
//   - GET    /metrics                 - Prometheus metrics
//
// The user message is stored before the response starts streaming. The
// assistant message is stored only when the responder finishes cleanly,
// immediately before the complete frame. A responder failure is sent as an
// error frame and ends the stream without complete.
//
// # Usage
//
//	srv := server.NewServer("127.0.0.1:8000").
//	    WithResponder(server.NewEchoResponder(40 * time.Millisecond))
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
