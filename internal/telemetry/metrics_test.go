// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
	"github.com/jeranaias/research-tui/internal/stream"
)

func TestMetrics_Summary(t *testing.T) {
	m := New("research")

	m.ObserveChunk(stream.Text{Content: "a"})
	m.ObserveChunk(stream.Text{Content: "b"})
	m.ObserveChunk(stream.Complete{})
	m.ObserveDrop([]byte("garbage"), errors.New("malformed"))
	m.ObserveResult(session.Result{
		State: session.StateCommitted,
		Stats: model.StreamStats{FirstChunk: 120 * time.Millisecond, Total: time.Second},
	})
	m.ObserveResult(session.Result{State: session.StateCancelled})

	sum := m.Summary()
	if got := sum.Chunks["text"]; got != 2 {
		t.Errorf("Chunks[text] = %d, want 2", got)
	}
	if got := sum.Streams["committed"]; got != 1 {
		t.Errorf("Streams[committed] = %d, want 1", got)
	}
	if sum.Total() != 2 {
		t.Errorf("Total() = %d, want 2", sum.Total())
	}
	if sum.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", sum.Dropped)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New("a")
	b := New("a")
	a.ObserveDrop(nil, nil)

	if got := b.Summary().Dropped; got != 0 {
		t.Errorf("second instance Dropped = %d, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New("research_mock")
	m.ObserveRequest("/api/chats", http.StatusOK, 5*time.Millisecond)
	m.StreamStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`research_mock_http_requests_total{code="200",route="/api/chats"} 1`,
		"research_mock_active_streams 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
