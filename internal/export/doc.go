// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes research conversations to shareable files.
//
// # Key Types
//
//   - Exporter: format-specific conversion of a model.Conversation
//   - MarkdownExporter: readable transcript with citations and reasoning
//   - JSONExporter: lossless machine-readable transcript
//   - Options: output directory and what to include
//
// # Usage
//
//	path, err := export.ExportToFile(conv, export.NewMarkdownExporter(nil), nil)
//
// Or pick an exporter by name:
//
//	exp, err := export.ForFormat("json", opts)
package export
