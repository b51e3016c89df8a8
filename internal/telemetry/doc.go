// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes Prometheus metrics for streaming and HTTP traffic.
//
// Every Metrics value owns its own registry, so independent instances (the
// interactive client, the mock backend, tests) never collide.
//
// # Key Types
//
//   - Metrics: Collectors for stream outcomes, chunks, dropped frames and HTTP requests
//   - Summary: Plain totals read back from the registry for status displays
//
// # Usage
//
//	metrics := telemetry.New("research")
//	ctrl := session.NewController(store, client,
//	    session.WithResultHook(metrics.ObserveResult),
//	    session.WithChunkHook(metrics.ObserveChunk),
//	    session.WithDecoderOptions(stream.WithDropHook(metrics.ObserveDrop)),
//	)
//	http.Handle("/metrics", metrics.Handler())
//
// # Privacy
//
// Only counts and durations are recorded. Message content is never observed.
package telemetry
