// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/model"
)

// ErrChatNotFound is returned for unknown chat ids.
var ErrChatNotFound = errors.New("chat not found")

// =============================================================================
// CHAT STORE
// =============================================================================

// ChatStore keeps chats in memory. It is safe for concurrent use.
type ChatStore struct {
	mu        sync.RWMutex
	chats     map[string]*chatRecord
	nextMsgID int64
	now       func() time.Time
}

type chatRecord struct {
	chat      api.Chat
	updatedAt time.Time
}

// NewChatStore creates an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		chats: make(map[string]*chatRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a chat with a fresh uuid. An empty title becomes "New Chat".
func (s *ChatStore) Create(title string) api.Chat {
	if title == "" {
		title = model.DefaultTitle
	}
	now := s.now()
	rec := &chatRecord{
		chat:      api.Chat{ID: uuid.NewString(), Title: title, CreatedAt: now},
		updatedAt: now,
	}

	s.mu.Lock()
	s.chats[rec.chat.ID] = rec
	s.mu.Unlock()

	return copyChat(rec.chat, true)
}

// Get returns the chat with its messages.
func (s *ChatStore) Get(id string) (api.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[id]
	if !ok {
		return api.Chat{}, ErrChatNotFound
	}
	return copyChat(rec.chat, true), nil
}

// List returns up to limit chats, most recently updated first, without
// messages.
func (s *ChatStore) List(limit int) []api.Chat {
	s.mu.RLock()
	recs := make([]*chatRecord, 0, len(s.chats))
	for _, rec := range s.chats {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].updatedAt.Equal(recs[j].updatedAt) {
			return recs[i].updatedAt.After(recs[j].updatedAt)
		}
		return recs[i].chat.ID < recs[j].chat.ID
	})
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]api.Chat, len(recs))
	for i, rec := range recs {
		out[i] = copyChat(rec.chat, false)
	}
	return out
}

// Rename changes a chat's title.
func (s *ChatStore) Rename(id, title string) (api.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[id]
	if !ok {
		return api.Chat{}, ErrChatNotFound
	}
	rec.chat.Title = title
	rec.updatedAt = s.now()
	return copyChat(rec.chat, true), nil
}

// Delete removes a chat and its messages.
func (s *ChatStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return ErrChatNotFound
	}
	delete(s.chats, id)
	return nil
}

// Clear removes every chat and returns how many there were.
func (s *ChatStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.chats)
	s.chats = make(map[string]*chatRecord)
	return n
}

// AddMessage appends msg to a chat, assigning the next message id and the
// creation time.
func (s *ChatStore) AddMessage(chatID string, msg model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return model.Message{}, ErrChatNotFound
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.CreatedAt = s.now()
	if len(msg.Sources) == 0 {
		msg.Sources = nil
	} else {
		msg.Sources = append([]model.Source(nil), msg.Sources...)
	}
	rec.chat.Messages = append(rec.chat.Messages, msg)
	rec.updatedAt = msg.CreatedAt
	return msg, nil
}

// Len returns the number of chats.
func (s *ChatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

func copyChat(c api.Chat, withMessages bool) api.Chat {
	out := api.Chat{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt}
	if !withMessages {
		return out
	}
	out.Messages = make([]model.Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.Sources != nil {
			m.Sources = append([]model.Source(nil), m.Sources...)
		}
		out.Messages[i] = m
	}
	return out
}
