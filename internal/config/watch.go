// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events editors produce on save.
const DefaultWatchDebounce = 150 * time.Millisecond

// ChangeFunc receives the reloaded config, or the error that prevented it.
type ChangeFunc func(cfg *Config, err error)

// Watch reloads path whenever it changes and calls fn with the result.
// The parent directory is watched so atomic rename-on-save is seen.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, fn ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			cfg, err := LoadFromPath(abs)
			if err != nil {
				log.Printf("CONFIG_RELOAD_FAILED | path=%s error=%v", abs, err)
			} else {
				log.Printf("CONFIG_RELOADED | path=%s", abs)
			}
			fn(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("CONFIG_WATCH_ERROR | path=%s error=%v", abs, err)
		}
	}
}

// WatchGlobal keeps the global config in sync with path. Invalid edits are
// logged and the previous config stays in effect.
func WatchGlobal(ctx context.Context, path string) error {
	return Watch(ctx, path, 0, func(cfg *Config, err error) {
		if err == nil {
			SetGlobal(cfg)
		}
	})
}
