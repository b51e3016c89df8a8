// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Development backend command.
//
// Command: serve
// Short:   Run the in-memory research backend
//
// The bundled backend speaks the same REST and streaming protocol as the
// production service, answering with a canned echo responder. It exists so
// the client can be tried and tested without the real service.

package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jeranaias/research-tui/internal/server"
	"github.com/jeranaias/research-tui/internal/telemetry"
)

// shutdownTimeout bounds how long in-flight streams get after an interrupt.
const shutdownTimeout = 5 * time.Second

// RunServe serves until ctx is cancelled.
func RunServe(ctx context.Context, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	addr := cfg.Serve.Addr
	if args.Addr != "" {
		addr = args.Addr
	}
	delay := cfg.Serve.TokenDelay()
	if args.DelayMs >= 0 {
		delay = time.Duration(args.DelayMs) * time.Millisecond
	}
	metrics := cfg.Serve.Metrics
	if args.Metrics != nil {
		metrics = *args.Metrics
	}

	srv := server.NewServer(addr).
		WithResponder(server.NewEchoResponder(delay)).
		WithCORSOrigins(cfg.Serve.CORSOrigins)
	if metrics {
		srv = srv.WithMetrics(telemetry.New(server.MetricsNamespace))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s Serving on http://%s (token delay %s, metrics %s)\n",
			SuccessStyle.Render("[OK]"), ln.Addr(), delay, onOff(metrics))
		fmt.Fprintln(os.Stderr, DimStyle.Render("Press Ctrl+C to stop."))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return <-errCh
}
