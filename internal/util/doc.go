// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the research client.
//
// # Key Functions
//
// Text:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width truncation (CJK and emoji aware)
//   - StringWidth: terminal cell width of a string
//   - CollapseSpace: fold runs of whitespace into single spaces
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - ExpandHome: resolve a leading ~ against the user's home directory
//
// # Usage
//
//	label := util.TruncateWidth(chat.Title, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
