// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
	"github.com/jeranaias/research-tui/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultListLimit is used when /api/chats has no limit parameter.
	DefaultListLimit = 10

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MetricsNamespace prefixes the server's Prometheus metrics.
	MetricsNamespace = "research_server"
)

// DefaultCORSOrigins are the local frontend dev servers.
var DefaultCORSOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// ============================================================================
// SERVER
// ============================================================================

// Server is the in-memory research backend.
type Server struct {
	addr        string
	store       *ChatStore
	responder   Responder
	metrics     *telemetry.Metrics
	corsOrigins []string
	logger      *log.Logger

	server *http.Server
	mu     sync.RWMutex
}

// NewServer creates a Server that will listen on addr. An empty addr uses
// DefaultAddr.
func NewServer(addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		addr:        addr,
		store:       NewChatStore(),
		responder:   NewEchoResponder(0),
		corsOrigins: DefaultCORSOrigins,
		logger:      log.Default(),
	}
}

// WithResponder sets how answers are produced.
func (s *Server) WithResponder(r Responder) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
	return s
}

// WithStore replaces the chat store.
func (s *Server) WithStore(store *ChatStore) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	return s
}

// WithMetrics enables /metrics and request instrumentation.
func (s *Server) WithMetrics(m *telemetry.Metrics) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
	return s
}

// WithCORSOrigins sets the allowed browser origins.
func (s *Server) WithCORSOrigins(origins []string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corsOrigins = origins
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *log.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Store returns the chat store.
func (s *Server) Store() *ChatStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// ============================================================================
// ROUTES
// ============================================================================

// Handler builds the complete handler: routes, CORS, logging and recovery.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	if s.metrics != nil {
		r.Use(MetricsMiddleware(s.metrics))
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", s.handleCreateChat).Methods(http.MethodPost)
	r.HandleFunc("/api/chats", s.handleListChats).Methods(http.MethodGet)
	r.HandleFunc("/api/chats", s.handleClearChats).Methods(http.MethodDelete)
	r.HandleFunc("/api/chat/{id}", s.handleGetChat).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/{id}", s.handleRenameChat).Methods(http.MethodPatch)
	r.HandleFunc("/api/chat/{id}", s.handleDeleteChat).Methods(http.MethodDelete)
	r.HandleFunc("/api/chat/{id}/message", s.handleSendMessage).Methods(http.MethodPost)

	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.corsOrigins),
	)(r)
}

// ============================================================================
// CHAT HANDLERS
// ============================================================================

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Research Agent API",
		"status":  "running",
	})
}

type titleRequest struct {
	Title *string `json:"title"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeDetail(w, statusFor(err), err.Error())
		return
	}
	title := ""
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	chat := s.Store().Create(title)
	log.Printf("CHAT_CREATED | id=%s", chat.ID)
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.Store().Get(mux.Vars(r)["id"])
	if err != nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.Store().List(limit))
}

func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeDetail(w, statusFor(err), err.Error())
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title must not be empty")
		return
	}
	chat, err := s.Store().Rename(mux.Vars(r)["id"], strings.TrimSpace(*req.Title))
	if err != nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Store().Delete(id); err != nil {
		writeNotFound(w)
		return
	}
	log.Printf("CHAT_DELETED | id=%s", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleClearChats(w http.ResponseWriter, _ *http.Request) {
	n := s.Store().Clear()
	log.Printf("CHATS_CLEARED | count=%d", n)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// ============================================================================
// MESSAGE STREAMING
// ============================================================================

type messageRequest struct {
	Content string `json:"content"`
}

// errClientGone stops a responder once the connection is unusable.
var errClientGone = errors.New("client disconnected")

// errStreamEnded stops a responder that emitted its own error chunk.
var errStreamEnded = errors.New("stream ended by error chunk")

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]

	var req messageRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeDetail(w, statusFor(err), err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "content must not be empty")
		return
	}

	s.mu.RLock()
	store, responder, metrics := s.store, s.responder, s.metrics
	s.mu.RUnlock()

	chat, err := store.Get(chatID)
	if err != nil {
		writeNotFound(w)
		return
	}
	if _, err := store.AddMessage(chatID, model.Message{Role: model.RoleUser, Content: req.Content}); err != nil {
		writeNotFound(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if metrics != nil {
		metrics.StreamStarted()
		defer metrics.StreamFinished()
	}

	ctx := r.Context()
	start := time.Now()

	// PERFORMANCE: strings.Builder avoids quadratic allocations
	var text, thinking strings.Builder
	var sources []model.Source
	var buf []byte
	failed := false

	emit := func(c stream.Chunk) error {
		if failed {
			return errStreamEnded
		}
		if err := ctx.Err(); err != nil {
			return errClientGone
		}
		switch v := c.(type) {
		case stream.Text:
			text.WriteString(v.Content)
		case stream.Thinking:
			thinking.WriteString(v.Content)
			thinking.WriteString("\n")
		case stream.Done:
			sources = v.Sources
			thinking.WriteString(v.Thinking)
		case stream.Error:
			failed = true
		case stream.Complete:
			// Complete is sent by the server after the message is stored.
			return nil
		}

		var err error
		if buf, err = stream.AppendFrame(buf[:0], c); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return errClientGone
		}
		flusher.Flush()
		if metrics != nil {
			metrics.ObserveChunk(c)
		}
		if failed {
			return errStreamEnded
		}
		return nil
	}

	prompt := Prompt{ChatID: chatID, Content: req.Content, History: chat.Messages}
	err = responder.Respond(ctx, prompt, emit)

	switch {
	case failed:
		log.Printf("STREAM_ERROR | chat=%s source=responder", chatID)
		return
	case errors.Is(err, errClientGone) || ctx.Err() != nil:
		log.Printf("STREAM_ABANDONED | chat=%s after=%s", chatID, time.Since(start).Round(time.Millisecond))
		return
	case err != nil:
		log.Printf("STREAM_ERROR | chat=%s error=%v", chatID, err)
		_ = emit(stream.Error{Message: "Error: " + err.Error()})
		return
	}

	if len(sources) == 0 {
		// Stored as null, matching messages that never searched.
		sources = nil
	}
	assistant := model.Message{
		Role:     model.RoleAssistant,
		Content:  text.String(),
		Sources:  sources,
		Thinking: thinking.String(),
	}
	if _, err := store.AddMessage(chatID, assistant); err != nil {
		// Chat deleted mid-stream.
		log.Printf("STREAM_ERROR | chat=%s error=%v", chatID, err)
		_ = emit(stream.Error{Message: "Error: chat was deleted"})
		return
	}

	if buf, err = stream.AppendFrame(buf[:0], stream.Complete{}); err == nil {
		if _, err := w.Write(buf); err == nil {
			flusher.Flush()
			if metrics != nil {
				metrics.ObserveChunk(stream.Complete{})
			}
		}
	}
	log.Printf("STREAM_COMPLETE | chat=%s chars=%d sources=%d duration=%s",
		chatID, text.Len(), len(sources), time.Since(start).Round(time.Millisecond))
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: streamed answers may run for minutes.
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | chats=%d", s.Store().Len())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// requestError carries the status for a body decoding failure.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func statusFor(err error) int {
	var re *requestError
	if errors.As(err, &re) {
		return re.status
	}
	return http.StatusBadRequest
}

// decodeBody decodes a JSON body. allowEmpty accepts a missing body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return &requestError{http.StatusUnprocessableEntity, "request body is required"}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", MaxRequestBodySize)}
	}
	log.Printf("INVALID_BODY | path=%s error=%v", r.URL.Path, err)
	return &requestError{http.StatusUnprocessableEntity, "invalid JSON body"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ENCODE_FAILED | error=%v", err)
	}
}

// writeDetail writes the backend's error shape: {"detail": "..."}.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeNotFound(w http.ResponseWriter) {
	writeDetail(w, http.StatusNotFound, "Chat not found")
}
