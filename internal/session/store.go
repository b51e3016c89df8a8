// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/stream"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of a Store. Renderers should be a pure
// function of the latest snapshot.
type Snapshot struct {
	ChatID string
	Title  string

	// Messages are the committed messages, in order.
	Messages []model.Message

	State      State
	Generation uint64

	// Streaming is the running answer text; Thinking is the live thinking
	// snapshot. Both are empty unless State is active.
	Streaming string
	Thinking  string

	// Err is the failure of the last stream when State is StateFailed.
	Err error
}

// Active reports whether a stream is Sending or Streaming.
func (s Snapshot) Active() bool {
	return s.State.Active()
}

// Listener receives a snapshot after every visible change.
type Listener func(Snapshot)

// Applied is the result of ApplyChunk.
type Applied struct {
	State State

	// Committed is set when the chunk committed the assistant message.
	Committed *model.Message
}

// =============================================================================
// STORE
// =============================================================================

// Store owns one chat's conversation and the fold of its current stream.
//
// All methods are safe for concurrent use. Listeners run synchronously on
// the mutating goroutine after the store lock is released; they may read the
// store but must not mutate it. Under contention a listener may skip an
// intermediate snapshot, never the latest one.
type Store struct {
	mu   sync.Mutex
	conv *model.Conversation
	fold Fold
	gen  uint64

	// prevGen and prevState record how the stream before gen ended.
	prevGen   uint64
	prevState State

	subs    map[int]Listener
	nextSub int
	seq     uint64

	// notifyMu serializes deliveries; delivered is the newest seq sent.
	// A snapshot older than one already delivered is skipped.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewStore creates a store for conv.
func NewStore(conv *model.Conversation) *Store {
	if conv == nil {
		conv = model.NewConversation("", "")
	}
	return &Store{
		conv: conv,
		subs: make(map[int]Listener),
	}
}

// Subscribe registers fn and immediately delivers the current snapshot.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snap := s.snapshotLocked()
	seq := s.seq
	s.mu.Unlock()

	s.notifyMu.Lock()
	if seq >= s.delivered {
		fn(snap)
	}
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ChatID returns the id of the chat this store holds.
func (s *Store) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ID
}

// Generation returns the generation of the most recent stream.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Conversation returns a copy of the committed conversation.
func (s *Store) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone()
}

// Load swaps in another conversation. It fails while a stream is active.
func (s *Store) Load(conv *model.Conversation) error {
	s.mu.Lock()
	if s.fold.State().Active() {
		s.mu.Unlock()
		return ErrStreamActive
	}
	s.conv = conv
	s.fold = Fold{}
	s.notifyLocked()
	return nil
}

// SetTitle renames the chat.
func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	s.conv.SetTitle(title)
	s.notifyLocked()
}

// =============================================================================
// STREAM OPERATIONS
// =============================================================================

// AppendUserMessage commits the user's message. It is rejected while a
// stream is active so that user entries never interleave with an answer.
func (s *Store) AppendUserMessage(text string) (model.Message, error) {
	s.mu.Lock()
	if s.fold.State().Active() {
		s.mu.Unlock()
		return model.Message{}, ErrStreamActive
	}
	msg := s.conv.Append(model.Message{Role: model.RoleUser, Content: text})
	s.notifyLocked()
	return msg, nil
}

// BeginAssistantStream moves the fold to Sending and returns the new
// stream's generation.
func (s *Store) BeginAssistantStream() (uint64, error) {
	s.mu.Lock()
	prev := s.fold.State()
	if err := s.fold.Begin(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	gen := s.advanceLocked(prev)
	s.notifyLocked()
	return gen, nil
}

// Submit appends the user message and begins the assistant stream as one
// step. first reports whether this was the chat's first message.
func (s *Store) Submit(text string) (msg model.Message, gen uint64, first bool, err error) {
	s.mu.Lock()
	if s.fold.State().Active() {
		s.mu.Unlock()
		return model.Message{}, 0, false, ErrStreamActive
	}
	first = s.conv.IsEmpty()
	msg = s.conv.Append(model.Message{Role: model.RoleUser, Content: text})
	prev := s.fold.State()
	_ = s.fold.Begin()
	gen = s.advanceLocked(prev)
	s.notifyLocked()
	return msg, gen, first, nil
}

// ApplyChunk folds c into the stream identified by gen.
func (s *Store) ApplyChunk(gen uint64, c stream.Chunk) (Applied, error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return Applied{}, ErrStaleStream
	}

	step := s.fold.Apply(c)
	result := Applied{State: s.fold.State()}
	if step.Commit != nil {
		msg := s.conv.Append(model.Message{
			Role:     model.RoleAssistant,
			Content:  step.Commit.Content,
			Sources:  step.Commit.Sources,
			Thinking: step.Commit.Thinking,
		})
		result.Committed = &msg
	}
	if !step.Changed {
		s.mu.Unlock()
		return result, nil
	}
	s.notifyLocked()
	return result, nil
}

// Commit finalizes the stream from its current buffers, as if a complete
// chunk had arrived. It returns false if there was no active stream.
func (s *Store) Commit(gen uint64) (model.Message, bool) {
	applied, err := s.ApplyChunk(gen, stream.Complete{})
	if err != nil || applied.Committed == nil {
		return model.Message{}, false
	}
	return *applied.Committed, true
}

// Cancel discards the active stream's buffers. Stale generations and
// resolved streams are ignored.
func (s *Store) Cancel(gen uint64) bool {
	return s.resolve(gen, func(f *Fold) bool { return f.Cancel() })
}

// Fail ends the active stream with err.
func (s *Store) Fail(gen uint64, err error) bool {
	return s.resolve(gen, func(f *Fold) bool { return f.Fail(err) })
}

// Finish handles end of data and returns the state gen ended in. A stream
// that is still active never saw complete and is failed with
// ErrIncompleteStream. For the stream just superseded it returns the state
// that stream ended in; generations older than that are not tracked and
// report StateIdle.
func (s *Store) Finish(gen uint64) State {
	s.Fail(gen, ErrIncompleteStream)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case gen == s.gen:
		return s.fold.State()
	case gen == s.prevGen && gen != 0:
		return s.prevState
	default:
		return StateIdle
	}
}

// Clear drops every committed message.
func (s *Store) Clear() error {
	s.mu.Lock()
	if s.fold.State().Active() {
		s.mu.Unlock()
		return ErrStreamActive
	}
	s.conv.Clear()
	s.fold = Fold{}
	s.notifyLocked()
	return nil
}

// advanceLocked starts a new generation. prev is the state the outgoing
// stream ended in.
func (s *Store) advanceLocked(prev State) uint64 {
	s.prevGen, s.prevState = s.gen, prev
	s.gen++
	return s.gen
}

func (s *Store) resolve(gen uint64, fn func(*Fold) bool) bool {
	s.mu.Lock()
	if gen != s.gen || !fn(&s.fold) {
		s.mu.Unlock()
		return false
	}
	s.notifyLocked()
	return true
}

// =============================================================================
// NOTIFICATION
// =============================================================================

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		ChatID:     s.conv.ID,
		Title:      s.conv.GetTitle(),
		Messages:   s.conv.Messages(),
		State:      s.fold.State(),
		Generation: s.gen,
		Streaming:  s.fold.Text(),
		Thinking:   s.fold.ThinkingView(),
	}
	if snap.State == StateFailed {
		snap.Err = s.fold.Err()
	}
	return snap
}

// notifyLocked must be called with mu held; it releases mu before
// delivering so listeners can read the store.
func (s *Store) notifyLocked() {
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	for _, fn := range listeners {
		fn(snap)
	}
}
