// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// StreamStats holds measurements for one stream attempt.
type StreamStats struct {
	StartedAt time.Time

	// FirstChunk is the delay until the first decoded chunk (zero if none arrived).
	FirstChunk time.Duration

	// Total is the time from request to the terminal transition.
	Total time.Duration

	Chunks  int
	Dropped int
}

// Format renders the stats as "2.5s | 42 chunks | first chunk 234ms".
func (s StreamStats) Format() string {
	if s.Total == 0 {
		return ""
	}
	parts := []string{fmt.Sprintf("%.1fs", s.Total.Seconds())}
	parts = append(parts, fmt.Sprintf("%d chunks", s.Chunks))
	if s.FirstChunk > 0 {
		parts = append(parts, fmt.Sprintf("first chunk %dms", s.FirstChunk.Milliseconds()))
	}
	if s.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d dropped", s.Dropped))
	}
	return strings.Join(parts, " | ")
}
