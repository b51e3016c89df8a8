// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// CHAT OPERATION TESTS
// =============================================================================

func TestClient_CreateChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "New Chat", body["title"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"6f1c","title":"New Chat","created_at":"2025-01-02T03:04:05.123456","messages":[]}`)
	}))
	defer server.Close()

	chat, err := NewClient(server.URL).CreateChat(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "6f1c", chat.ID)
	assert.Equal(t, "New Chat", chat.Title)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC), chat.CreatedAt)
	assert.Empty(t, chat.Messages)
}

func TestClient_GetChatDecodesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/abc", r.URL.Path)
		io.WriteString(w, `{
			"id":"abc","title":"Quantum","created_at":"2025-01-02T03:04:05",
			"messages":[
				{"id":1,"role":"user","content":"q","sources":null,"thinking":null,"created_at":"2025-01-02T03:04:06"},
				{"id":2,"role":"assistant","content":"a","sources":[{"title":"X","url":"http://x"}],"thinking":"searched","created_at":"2025-01-02T03:04:07+00:00"}
			]}`)
	}))
	defer server.Close()

	chat, err := NewClient(server.URL).GetChat(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)

	assert.Equal(t, model.RoleUser, chat.Messages[0].Role)
	assert.Nil(t, chat.Messages[0].Sources)
	assert.False(t, chat.Messages[0].HasThinking())

	assert.Equal(t, int64(2), chat.Messages[1].ID)
	assert.Equal(t, []model.Source{{Title: "X", URL: "http://x"}}, chat.Messages[1].Sources)
	assert.Equal(t, "searched", chat.Messages[1].Thinking)

	conv := chat.Conversation()
	assert.Equal(t, 2, conv.Len())
	assert.Equal(t, "Quantum", conv.GetTitle())
}

func TestClient_ListChats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		io.WriteString(w, `[{"id":"a","title":"A","created_at":"2025-01-02T03:04:05","messages":[]},
			{"id":"b","title":"B","created_at":"2025-01-01T03:04:05","messages":[]}]`)
	}))
	defer server.Close()

	chats, err := NewClient(server.URL).ListChats(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "a", chats[0].ID)
	assert.Equal(t, "B", chats[1].Title)
}

func TestClient_UpdateDeleteClear(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodPatch {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			io.WriteString(w, `{"id":"x","title":"`+body["title"]+`","created_at":"","messages":[]}`)
			return
		}
		io.WriteString(w, `{"message":"ok"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	chat, err := client.UpdateChatTitle(context.Background(), "x", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", chat.Title)
	require.NoError(t, client.RenameChat(context.Background(), "x", "Again"))
	require.NoError(t, client.DeleteChat(context.Background(), "x"))
	require.NoError(t, client.ClearChats(context.Background()))

	assert.Equal(t, []string{
		"PATCH /api/chat/x",
		"PATCH /api/chat/x",
		"DELETE /api/chat/x",
		"DELETE /api/chats",
	}, calls)
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClient_NotFoundMapsToOperationFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Chat not found"}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetChat(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Chat not found", apiErr.Detail)
	assert.Equal(t, "failed to load chat (HTTP 404): Chat not found", apiErr.Error())
}

func TestClient_RetriesIdempotentOn5xx(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	chats, err := NewClient(server.URL).WithMaxRetries(2).ListChats(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, chats)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateChat(context.Background(), "t")
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, int32(1), hits.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Internal Server Error", apiErr.Detail)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	err := NewClient(addr).WithMaxRetries(1).Health(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOperationFailed))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestClient_SendMessageStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/c1/message", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"type\":\"text\",\"content\":\"Hi\"}\n\n")
		flusher.Flush()
		io.WriteString(w, "data: {\"type\":\"complete\"}\n\n")
	}))
	defer server.Close()

	body, err := NewClient(server.URL).SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"text\",\"content\":\"Hi\"}\n\ndata: {\"type\":\"complete\"}\n\n", string(data))
}

func TestClient_SendMessageStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Chat not found"}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).SendMessage(context.Background(), "gone", "hello")
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "failed to send message")
}

func TestClient_SendMessageHonorsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	body, err := NewClient(server.URL).SendMessage(ctx, "c1", "hello")
	require.NoError(t, err)
	defer body.Close()

	cancel()
	_, err = io.ReadAll(body)
	assert.Error(t, err)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestClient_ConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer server.Close()

	client := NewClient(server.URL).WithRateLimit(1000, 10)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ListChats(context.Background(), 3)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestChat_MarshalRoundTrip(t *testing.T) {
	chat := Chat{
		ID:        "c",
		Title:     "T",
		CreatedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		Messages: []model.Message{
			{ID: 1, Role: model.RoleAssistant, Content: "a", Thinking: "t",
				CreatedAt: time.Date(2025, 5, 1, 12, 0, 1, 0, time.UTC)},
		},
	}
	data, err := json.Marshal(chat)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":"2025-05-01T12:00:00.000000"`)

	var back Chat
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, chat, back)
}
