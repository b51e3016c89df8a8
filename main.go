// research - A terminal client for a streaming research assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/research-tui/internal/cli"
	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/ui/chat"
	"github.com/jeranaias/research-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdChats:
		cli.HandleChats(args)
	case cli.CmdServe:
		cli.HandleServe(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleHelp()
		os.Exit(cli.ExitUsageError)
	}
}

// =============================================================================
// FULL-SCREEN INTERFACE
// =============================================================================

func runTUI(args cli.Args) {
	if err := startTUI(args); err != nil {
		cli.DisplayError(os.Stderr, err, false)
		os.Exit(cli.GetExitCode(err))
	}
}

func startTUI(args cli.Args) error {
	env, err := cli.LoadEnv(args)
	if err != nil {
		return err
	}
	defer env.Close()

	// The alternate screen owns the terminal, so logs go to the file only.
	if err := env.SetupLogging(false); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings edited while the interface runs take effect for new commands;
	// the running interface keeps its startup values.
	if path := args.ConfigPath; path != "" || config.FindConfigFile() != "" {
		if path == "" {
			path = config.FindConfigFile()
		}
		go func() {
			err := config.Watch(ctx, path, 0, func(cfg *config.Config, err error) {
				if err != nil {
					log.Printf("CONFIG_RELOAD_FAILED | path=%s error=%v", path, err)
					return
				}
				config.SetGlobal(cfg)
				log.Printf("CONFIG_RELOADED | path=%s", path)
			})
			if err != nil && ctx.Err() == nil {
				log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
			}
		}()
	}

	// The interface creates or opens the chat itself once it starts.
	ctrl := env.NewController(nil)
	m := chat.New(chat.Options{
		Backend:       env.Client,
		Controller:    ctrl,
		Theme:         styles.NewThemeForMode(env.Config.UI.Theme),
		UI:            env.Config.UI,
		ListLimit:     env.Config.Chat.ListLimit,
		MaxInputRunes: env.Config.Chat.MaxInputRunes,
		ChatID:        args.ChatID,
		ExportDir:     ".",
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	// Quitting mid-stream stops the request instead of leaking it.
	ctrl.Abort()
	if err != nil {
		return fmt.Errorf("failed to run interface: %w", err)
	}
	return nil
}
