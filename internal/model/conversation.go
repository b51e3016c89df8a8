// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"
)

// DefaultTitle is shown for chats that have not been renamed yet.
const DefaultTitle = "New Chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the committed messages of one chat in insertion order.
//
// A Conversation is not safe for concurrent use; the session store owns it
// and serializes access.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	messages []Message
	lastID   int64

	// clock is swappable for deterministic ids in tests.
	clock func() time.Time
}

// NewConversation creates an empty conversation for the given chat.
func NewConversation(id, title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		messages:  make([]Message, 0),
		clock:     time.Now,
	}
}

// NewConversationFromMessages rebuilds a conversation from server history.
// Existing message ids are kept; later local ids continue above the highest one.
func NewConversationFromMessages(id, title string, createdAt time.Time, msgs []Message) *Conversation {
	c := NewConversation(id, title)
	if !createdAt.IsZero() {
		c.CreatedAt = createdAt
		c.UpdatedAt = createdAt
	}
	for _, m := range msgs {
		c.Append(m)
	}
	return c
}

// SetClock replaces the time source used for ids and timestamps.
func (c *Conversation) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	c.clock = clock
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// NextID allocates a message id derived from the current time in
// milliseconds. Two ids allocated in the same millisecond still differ.
func (c *Conversation) NextID() int64 {
	id := c.clock().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

// Append commits a message and returns the stored copy. A zero ID or
// CreatedAt is filled in.
func (c *Conversation) Append(msg Message) Message {
	if msg.ID == 0 {
		msg.ID = c.NextID()
	} else if msg.ID > c.lastID {
		c.lastID = msg.ID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.clock()
	}
	if len(msg.Sources) == 0 {
		msg.Sources = nil
	}
	msg = msg.clone()
	c.messages = append(c.messages, msg)
	c.UpdatedAt = c.clock()
	return msg.clone()
}

// Messages returns a copy of the committed messages in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of committed messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// IsEmpty returns true if nothing has been committed yet.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// Last returns the most recently committed message.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].clone(), true
}

// MessageByID finds a committed message.
func (c *Conversation) MessageByID(id int64) (Message, bool) {
	for _, m := range c.messages {
		if m.ID == id {
			return m.clone(), true
		}
	}
	return Message{}, false
}

// CountRole returns how many committed messages have the given role.
func (c *Conversation) CountRole(role Role) int {
	n := 0
	for _, m := range c.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Clear drops all messages. Id allocation keeps increasing.
func (c *Conversation) Clear() {
	c.messages = make([]Message, 0)
	c.UpdatedAt = c.clock()
}

// =============================================================================
// TITLE
// =============================================================================

// SetTitle renames the conversation.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = c.clock()
}

// GetTitle returns the title, or DefaultTitle if none was set.
func (c *Conversation) GetTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.messages = c.Messages()
	return &clone
}
