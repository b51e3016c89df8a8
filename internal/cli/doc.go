// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive commands
// of the research client.
//
// Every command that talks to the research backend goes through the same
// session.Controller the TUI uses, so streaming, cancellation and commit
// semantics are identical whether a question is asked from the TUI, the
// line-mode chat, or a one-shot "ask".
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global and command-specific flags
//   - ArgParser: flag and positional parsing shared by subcommands
//   - Env: loaded configuration plus the API client built from it
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleAsk(args)
//	case cli.CmdChats:
//	    cli.HandleChats(args)
//	}
//
// # Commands Overview
//
//   - ask: one question, streamed to stdout
//   - chat: line-mode conversation with history
//   - chats: list, show, rename, delete, clear and export stored chats
//   - serve: run the bundled development backend
//   - config: show, get, set and initialize configuration
//
// Commands that print data accept --json for machine-readable output.
package cli
