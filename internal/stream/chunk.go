// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/research-tui/internal/model"
)

// =============================================================================
// CHUNK TYPES
// =============================================================================

// Kind is the wire tag of a chunk.
type Kind string

const (
	KindText     Kind = "text"
	KindThinking Kind = "thinking"
	KindDone     Kind = "done"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Chunk is one decoded protocol event. The set of implementations is closed:
// Text, Thinking, Done, Complete and Error.
type Chunk interface {
	Kind() Kind
	sealed()
}

// Text carries an incremental piece of answer text.
type Text struct {
	Content string
}

// Thinking carries the latest snapshot of the backend's progress trace.
type Thinking struct {
	Content string
}

// Done carries the final sources and thinking summary. A nil Sources means
// the field was absent on the wire.
type Done struct {
	Sources  []model.Source
	Thinking string
}

// Complete signals that the answer may be committed.
type Complete struct{}

// Error reports a backend failure. The backend does not send Complete after it.
type Error struct {
	Message string
}

func (Text) Kind() Kind     { return KindText }
func (Thinking) Kind() Kind { return KindThinking }
func (Done) Kind() Kind     { return KindDone }
func (Complete) Kind() Kind { return KindComplete }
func (Error) Kind() Kind    { return KindError }

func (Text) sealed()     {}
func (Thinking) sealed() {}
func (Done) sealed()     {}
func (Complete) sealed() {}
func (Error) sealed()    {}

// =============================================================================
// WIRE CODEC
// =============================================================================

// ErrMalformedFrame is returned by Parse for payloads that are not a chunk.
var ErrMalformedFrame = errors.New("malformed frame")

// wireChunk is the JSON shape shared by every chunk type.
type wireChunk struct {
	Type     Kind           `json:"type"`
	Content  string         `json:"content,omitempty"`
	Sources  []model.Source `json:"sources,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
}

// Parse decodes a single JSON payload into a Chunk.
func Parse(payload []byte) (Chunk, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedFrame)
	}

	var w wireChunk
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch w.Type {
	case KindText:
		return Text{Content: w.Content}, nil
	case KindThinking:
		return Thinking{Content: w.Content}, nil
	case KindDone:
		return Done{Sources: w.Sources, Thinking: w.Thinking}, nil
	case KindComplete:
		return Complete{}, nil
	case KindError:
		return Error{Message: w.Content}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, w.Type)
	}
}

// Marshal encodes a chunk as its JSON payload.
func Marshal(c Chunk) ([]byte, error) {
	var w wireChunk
	switch v := c.(type) {
	case Text:
		w = wireChunk{Type: KindText, Content: v.Content}
	case Thinking:
		w = wireChunk{Type: KindThinking, Content: v.Content}
	case Done:
		w = wireChunk{Type: KindDone, Sources: v.Sources, Thinking: v.Thinking}
		if v.Sources != nil && len(v.Sources) == 0 {
			// Keep an explicit empty list on the wire.
			return json.Marshal(struct {
				Type     Kind           `json:"type"`
				Sources  []model.Source `json:"sources"`
				Thinking string         `json:"thinking,omitempty"`
			}{KindDone, v.Sources, v.Thinking})
		}
	case Complete:
		w = wireChunk{Type: KindComplete}
	case Error:
		w = wireChunk{Type: KindError, Content: v.Message}
	default:
		return nil, fmt.Errorf("unsupported chunk %T", c)
	}
	return json.Marshal(w)
}

// AppendFrame appends the "data: <json>\n\n" frame for c to dst.
func AppendFrame(dst []byte, c Chunk) ([]byte, error) {
	payload, err := Marshal(c)
	if err != nil {
		return dst, err
	}
	dst = append(dst, FramePrefix...)
	dst = append(dst, payload...)
	return append(dst, '\n', '\n'), nil
}
