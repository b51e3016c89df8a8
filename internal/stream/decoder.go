// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

// FramePrefix marks a significant frame.
const FramePrefix = "data: "

// MaxFrameSize is the default limit for a single frame (64KB).
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is reported to the drop hook for frames over the limit.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// errNoPrefix is reported to the drop hook for lines without FramePrefix.
var errNoPrefix = fmt.Errorf("%w: missing %q prefix", ErrMalformedFrame, FramePrefix)

// =============================================================================
// DECODER
// =============================================================================

// DropFunc observes frames the decoder discarded.
type DropFunc func(line []byte, err error)

// Decoder turns a byte stream into a sequence of chunks.
//
// Frames are split on '\n' only, so a frame may arrive over any number of
// underlying reads, including splits inside a multi-byte character or a JSON
// object. A Decoder is not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	maxFrame int
	onDrop   DropFunc

	line    []byte
	dropped int
	decoded int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxFrameSize overrides MaxFrameSize. Values <= 0 are ignored.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrame = n
		}
	}
}

// WithDropHook is called for every discarded frame, after logging.
func WithDropHook(fn DropFunc) DecoderOption {
	return func(d *Decoder) {
		d.onDrop = fn
	}
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:        bufio.NewReaderSize(r, 4096),
		maxFrame: MaxFrameSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next chunk. It returns io.EOF when the underlying stream
// ends; any other error comes from the underlying reader and is fatal.
// Malformed frames are skipped.
func (d *Decoder) Next() (Chunk, error) {
	for {
		line, oversized, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if oversized {
			d.drop(line, ErrFrameTooLarge)
			continue
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			// Frame separators carry no data.
			continue
		}
		if !bytes.HasPrefix(line, []byte(FramePrefix)) {
			d.drop(line, errNoPrefix)
			continue
		}

		chunk, err := Parse(line[len(FramePrefix):])
		if err != nil {
			d.drop(line, err)
			continue
		}
		d.decoded++
		return chunk, nil
	}
}

// Dropped returns how many frames were discarded so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Decoded returns how many chunks were returned so far.
func (d *Decoder) Decoded() int {
	return d.decoded
}

// readLine reads up to and including the next '\n'. A final line without a
// newline is returned at end of data. Lines longer than maxFrame are
// consumed but not buffered.
func (d *Decoder) readLine() ([]byte, bool, error) {
	d.line = d.line[:0]
	oversized := false

	for {
		frag, err := d.r.ReadSlice('\n')
		if !oversized {
			if len(d.line)+len(frag) > d.maxFrame+2 {
				oversized = true
				d.line = append(d.line[:0], frag[:min(len(frag), 64)]...)
			} else {
				d.line = append(d.line, frag...)
			}
		}

		switch {
		case err == nil:
			return d.line, oversized, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(d.line) > 0 {
				return d.line, oversized, nil
			}
			return nil, false, io.EOF
		default:
			return nil, false, err
		}
	}
}

func (d *Decoder) drop(line []byte, err error) {
	d.dropped++
	log.Printf("STREAM_DROP | bytes=%d reason=%v", len(line), err)
	if d.onDrop != nil {
		d.onDrop(line, err)
	}
}
