// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is where the backend listens in development.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds every non-streaming request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent requests.
	DefaultMaxRetries = 3

	// DefaultListLimit matches the backend's default page of recent chats.
	DefaultListLimit = 10

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// UserAgent is sent with every request.
var UserAgent = "research-tui"

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the research backend.
type Client struct {
	baseURL string

	// httpClient has a timeout; streamClient is bounded by the context only.
	httpClient   *http.Client
	streamClient *http.Client

	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Transport: sharedTransport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: sharedTransport},
		limiter:      rate.NewLimiter(rate.Inf, 1),
		maxRetries:   DefaultMaxRetries,
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: timeout}
	}
	return c
}

// WithMaxRetries sets the attempts for idempotent requests.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	return c
}

// WithRateLimit paces requests. A non-positive rps disables pacing.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithHTTPClient replaces the underlying transport, keeping timeouts.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		return c
	}
	c.httpClient = &http.Client{Transport: hc.Transport, Timeout: c.httpClient.Timeout}
	c.streamClient = &http.Client{Transport: hc.Transport}
	return c
}

// BaseURL returns the backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// CreateChat creates a chat. An empty title becomes "New Chat".
func (c *Client) CreateChat(ctx context.Context, title string) (*Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = "New Chat"
	}
	var chat Chat
	err := c.doJSON(ctx, "create chat", http.MethodPost, "/api/chat", map[string]string{"title": title}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat fetches a chat with all of its messages.
func (c *Client) GetChat(ctx context.Context, id string) (*Chat, error) {
	var chat Chat
	if err := c.doJSON(ctx, "load chat", http.MethodGet, chatPath(id), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats returns the most recently updated chats, without messages.
func (c *Client) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	path := "/api/chats?limit=" + strconv.Itoa(limit)

	var chats []Chat
	if err := c.doJSON(ctx, "load chats", http.MethodGet, path, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// UpdateChatTitle renames a chat.
func (c *Client) UpdateChatTitle(ctx context.Context, id, title string) (*Chat, error) {
	var chat Chat
	err := c.doJSON(ctx, "update chat title", http.MethodPatch, chatPath(id), map[string]string{"title": title}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// RenameChat is UpdateChatTitle without the response, for use as a
// session.TitleFunc.
func (c *Client) RenameChat(ctx context.Context, id, title string) error {
	_, err := c.UpdateChatTitle(ctx, id, title)
	return err
}

// DeleteChat deletes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete chat", http.MethodDelete, chatPath(id), nil, nil)
}

// ClearChats deletes every chat.
func (c *Client) ClearChats(ctx context.Context) error {
	return c.doJSON(ctx, "clear chats", http.MethodDelete, "/api/chats", nil, nil)
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, "reach backend", http.MethodGet, "/", nil, nil)
}

// =============================================================================
// STREAMING
// =============================================================================

// SendMessage posts content to a chat and returns the streaming response
// body. The caller must close it. A non-2xx status is returned as an
// *APIError before any body is read.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (io.ReadCloser, error) {
	const op = "send message"

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, chatPath(chatID)+"/message", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logRequest(req)
	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	c.logResponse(req, resp, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, newAPIError(op, resp.StatusCode, body)
	}
	return resp.Body, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func chatPath(id string) string {
	return "/api/chat/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// doJSON performs a request and decodes a 2xx JSON response into out.
// GET and DELETE are retried with exponential backoff on 5xx and network
// errors.
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet || method == http.MethodDelete {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		err := c.doOnce(ctx, op, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	if attempts > 1 {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()
	c.logResponse(req, resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Remaining errors come from the transport (refused, reset, timeout).
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// calculateBackoff returns the delay to wait before the next retry.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// logRequest logs method, path and request id; bodies are never logged.
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API Request: %s %s id=%s", req.Method, req.URL.Path, req.Header.Get(RequestIDHeader))
}

func (c *Client) logResponse(req *http.Request, resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s id=%s (%v)", resp.StatusCode, req.URL.Path, req.Header.Get(RequestIDHeader), duration)
}
