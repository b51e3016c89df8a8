// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/research-tui/internal/model"
)

const (
	// MaxTitleRunes is the longest title kept without truncation.
	MaxTitleRunes = 40

	// minTitleCut is the earliest rune index a word-boundary cut may use.
	minTitleCut = 20
)

// GenerateTitle derives a chat title from the first question.
//
// Whitespace runs collapse to one space. Titles over MaxTitleRunes are cut at
// the last space past minTitleCut (or hard at the limit) and get "...".
func GenerateTitle(query string) string {
	// UNICODE: NFC so composed and decomposed input produce the same title
	cleaned := strings.Join(strings.Fields(norm.NFC.String(query)), " ")
	if cleaned == "" {
		return model.DefaultTitle
	}

	runes := []rune(cleaned)
	if len(runes) <= MaxTitleRunes {
		return cleaned
	}

	cut := runes[:MaxTitleRunes]
	for i := len(cut) - 1; i > minTitleCut; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return string(cut) + "..."
}
