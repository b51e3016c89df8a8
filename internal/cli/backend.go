// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// backend.go - Shared setup for commands that talk to the research backend.

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/config"
	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/session"
	"github.com/jeranaias/research-tui/internal/stream"
	"github.com/jeranaias/research-tui/internal/telemetry"
)

// ClientMetricsNamespace prefixes the client-side stream metrics.
const ClientMetricsNamespace = "research_client"

// Env is everything a command needs after startup.
type Env struct {
	Config  *config.Config
	Client  *api.Client
	Metrics *telemetry.Metrics

	closeLog func()
}

// LoadEnv loads configuration, applies command-line overrides and builds
// the API client. A config file that fails to parse is reported on stderr
// and defaults are used; validation failures are returned.
func LoadEnv(args Args) (*Env, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	return &Env{
		Config:  cfg,
		Client:  NewClient(cfg),
		Metrics: telemetry.New(ClientMetricsNamespace),
	}, nil
}

// LoadConfig loads the configuration for args and installs it as the
// global config.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
		}
	}

	if args.URL != "" {
		cfg.API.BaseURL = args.URL
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --url: %w", err)
		}
	}
	if args.Verbose {
		cfg.Log.Verbose = true
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

// NewClient builds an API client from cfg.
func NewClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst)
}

// NewController wires a controller for conv to the env's client, with the
// configured input limit, frame size, auto-title and metrics hooks.
func (e *Env) NewController(conv *model.Conversation, opts ...session.Option) *session.Controller {
	base := []session.Option{
		session.WithMaxInputRunes(e.Config.Chat.MaxInputRunes),
		session.WithDecoderOptions(
			stream.WithMaxFrameSize(e.Config.Stream.MaxFrameBytes),
			stream.WithDropHook(e.Metrics.ObserveDrop),
		),
		session.WithChunkHook(e.Metrics.ObserveChunk),
		session.WithResultHook(e.Metrics.ObserveResult),
	}
	if e.Config.Chat.AutoTitle {
		base = append(base, session.WithTitleFunc(e.Client.RenameChat))
	}
	return session.NewController(session.NewStore(conv), e.Client, append(base, opts...)...)
}

// OpenConversation fetches chatID, or creates a new chat when chatID is "".
func (e *Env) OpenConversation(ctx context.Context, chatID string) (*model.Conversation, error) {
	var (
		chat *api.Chat
		err  error
	)
	if chatID != "" {
		chat, err = e.Client.GetChat(ctx, chatID)
	} else {
		chat, err = e.Client.CreateChat(ctx, model.DefaultTitle)
	}
	if err != nil {
		return nil, err
	}
	return chat.Conversation(), nil
}

// Close releases the log file, if one was opened.
func (e *Env) Close() {
	if e.closeLog != nil {
		e.closeLog()
		e.closeLog = nil
	}
}

// =============================================================================
// LOGGING
// =============================================================================

// SetupLogging sends the standard logger to the configured log file.
// With mirror set and verbose enabled, log lines are copied to stderr too;
// the TUI passes mirror=false so nothing is written over the screen.
//
// SECURITY: the log file is created 0600; it contains chat IDs and errors.
func (e *Env) SetupLogging(mirror bool) error {
	path, err := e.Config.LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = f
	if mirror && e.Config.Log.Verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("STARTUP | version=%s base_url=%s", Version, e.Config.API.BaseURL)

	e.closeLog = func() {
		log.SetOutput(io.Discard)
		f.Close()
	}
	return nil
}
