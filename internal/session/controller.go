// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
)

// DefaultMaxInputRunes bounds a single user message.
const DefaultMaxInputRunes = 5000

// titleTimeout bounds the rename issued on a chat's first message.
const titleTimeout = 5 * time.Second

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport opens the streaming response for a message.
type Transport interface {
	SendMessage(ctx context.Context, chatID, content string) (io.ReadCloser, error)
}

// TitleFunc renames a chat on the backend.
type TitleFunc func(ctx context.Context, chatID, title string) error

// Result describes how a stream attempt ended.
type Result struct {
	Generation uint64
	State      State

	// Message is the committed assistant message when State is StateCommitted.
	Message model.Message

	// User is the user message that started the stream.
	User model.Message

	Err   error
	Stats model.StreamStats
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs stream attempts against one Store.
type Controller struct {
	store     *Store
	transport Transport

	maxInput    int
	decoderOpts []stream.DecoderOption
	setTitle    TitleFunc
	onResult    func(Result)
	onChunk     func(stream.Chunk)

	mu     sync.Mutex
	handle *handle
}

// handle is the cancellation state of one stream attempt.
type handle struct {
	gen     uint64
	cancel  context.CancelFunc
	aborted bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxInputRunes overrides DefaultMaxInputRunes.
func WithMaxInputRunes(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxInput = n
		}
	}
}

// WithDecoderOptions passes options to every stream decoder.
func WithDecoderOptions(opts ...stream.DecoderOption) Option {
	return func(c *Controller) {
		c.decoderOpts = append(c.decoderOpts, opts...)
	}
}

// WithTitleFunc renames the chat from its first message.
func WithTitleFunc(fn TitleFunc) Option {
	return func(c *Controller) {
		c.setTitle = fn
	}
}

// WithResultHook observes every finished stream attempt.
func WithResultHook(fn func(Result)) Option {
	return func(c *Controller) {
		c.onResult = fn
	}
}

// WithChunkHook observes every decoded chunk before it is folded.
func WithChunkHook(fn func(stream.Chunk)) Option {
	return func(c *Controller) {
		c.onChunk = fn
	}
}

// NewController creates a controller for store.
func NewController(store *Store, transport Transport, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		transport: transport,
		maxInput:  DefaultMaxInputRunes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store this controller writes to.
func (c *Controller) Store() *Store {
	return c.store
}

// Send submits text and streams the answer into the store. It blocks until
// the stream is committed, cancelled or failed. A cancelled stream returns
// ErrCancelled; a second Send while one is active returns ErrStreamActive.
func (c *Controller) Send(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > c.maxInput {
		return Result{}, ErrMessageTooLong
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The handle is installed under the same lock Abort takes, so an abort
	// can never observe a Sending fold without a handle.
	c.mu.Lock()
	user, gen, first, err := c.store.Submit(text)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	h := &handle{gen: gen, cancel: cancel}
	c.handle = h
	c.mu.Unlock()
	defer c.clearHandle(h)

	stats := model.StreamStats{StartedAt: time.Now()}
	result := c.run(ctx, h, text, first, &stats)
	result.User = user
	result.Stats = stats

	if c.onResult != nil {
		c.onResult(result)
	}
	return result, result.Err
}

func (c *Controller) run(ctx context.Context, h *handle, text string, first bool, stats *model.StreamStats) Result {
	chatID := c.store.ChatID()

	if first && c.setTitle != nil {
		c.renameChat(ctx, chatID, text)
	}

	body, err := c.transport.SendMessage(ctx, chatID, text)
	if err != nil {
		log.Printf("STREAM_ERROR | chat=%s gen=%d stage=open error=%v", chatID, h.gen, err)
		return c.finish(ctx, h, err, stats)
	}
	defer body.Close()

	dec := stream.NewDecoder(body, c.decoderOpts...)
	defer func() { stats.Dropped = dec.Dropped() }()

	for {
		chunk, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			partial := c.store.Snapshot().Streaming
			log.Printf("STREAM_ERROR | chat=%s gen=%d stage=read error=%v", chatID, h.gen, err)
			return c.finish(ctx, h, &TransportError{Partial: partial, Err: err}, stats)
		}

		if stats.Chunks == 0 {
			stats.FirstChunk = time.Since(stats.StartedAt)
		}
		stats.Chunks++
		if c.onChunk != nil {
			c.onChunk(chunk)
		}

		applied, err := c.store.ApplyChunk(h.gen, chunk)
		if err != nil {
			// Superseded: only possible after this stream was aborted.
			break
		}
		if applied.Committed != nil {
			stats.Total = time.Since(stats.StartedAt)
			return Result{Generation: h.gen, State: StateCommitted, Message: *applied.Committed}
		}
		if !applied.State.Active() {
			break
		}
	}

	return c.finish(ctx, h, nil, stats)
}

// finish resolves the attempt after the chunk loop or a transport failure.
func (c *Controller) finish(ctx context.Context, h *handle, err error, stats *model.StreamStats) Result {
	stats.Total = time.Since(stats.StartedAt)

	if c.aborted(h) || ctx.Err() != nil {
		c.store.Cancel(h.gen)
		return Result{Generation: h.gen, State: StateCancelled, Err: ErrCancelled}
	}

	if err != nil {
		c.store.Fail(h.gen, err)
	}
	state := c.store.Finish(h.gen)

	switch state {
	case StateFailed:
		failure := err
		if snap := c.store.Snapshot(); snap.Generation == h.gen && snap.Err != nil {
			failure = snap.Err
		}
		log.Printf("STREAM_FAILED | gen=%d chunks=%d error=%v", h.gen, stats.Chunks, failure)
		return Result{Generation: h.gen, State: StateFailed, Err: failure}
	case StateCancelled:
		return Result{Generation: h.gen, State: StateCancelled, Err: ErrCancelled}
	default:
		return Result{Generation: h.gen, State: state}
	}
}

func (c *Controller) renameChat(ctx context.Context, chatID, text string) {
	title := GenerateTitle(text)
	tctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	// Rename failures never block the message itself.
	if err := c.setTitle(tctx, chatID, title); err != nil {
		log.Printf("TITLE_UPDATE_FAILED | chat=%s error=%v", chatID, err)
		return
	}
	c.store.SetTitle(title)
}

// =============================================================================
// CANCELLATION
// =============================================================================

// Handle is the abort capability of one stream attempt. Aborting through a
// Handle whose stream is no longer current does nothing.
type Handle struct {
	gen uint64
	c   *Controller
}

// Generation returns the stream generation the handle belongs to.
func (h Handle) Generation() uint64 {
	return h.gen
}

// Abort cancels the stream if it is still the current one.
func (h Handle) Abort() bool {
	if h.c == nil {
		return false
	}
	return h.c.abort(func(cur *handle) bool { return cur.gen == h.gen })
}

// Current returns the handle of the active stream, if any.
func (c *Controller) Current() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return Handle{}, false
	}
	return Handle{gen: c.handle.gen, c: c}, true
}

// Abort cancels the active stream. It is a no-op when nothing is streaming.
func (c *Controller) Abort() bool {
	return c.abort(func(*handle) bool { return true })
}

// Busy reports whether a stream is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

func (c *Controller) abort(match func(*handle) bool) bool {
	c.mu.Lock()
	h := c.handle
	if h == nil || h.aborted || !match(h) {
		c.mu.Unlock()
		return false
	}
	h.aborted = true
	c.mu.Unlock()

	// Resolve the fold before terminating the request, so no chunk decoded
	// in between can still be folded.
	cancelled := c.store.Cancel(h.gen)
	h.cancel()
	if cancelled {
		log.Printf("STREAM_CANCELLED | gen=%d", h.gen)
	}
	return cancelled
}

func (c *Controller) aborted(h *handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return h.aborted
}

func (c *Controller) clearHandle(h *handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == h {
		c.handle = nil
	}
}
