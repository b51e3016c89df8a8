// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// research client.
//
// TOML, JSON and YAML files are supported, with sensible defaults,
// environment overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: backend URL, timeouts, rate limiting, retries
//   - StreamConfig: frame decoding limits
//   - UIConfig, ChatConfig: display and conversation behavior
//   - ServeConfig: the built-in mock backend
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (RESEARCH_*), including values from .env files
//   - ~/.research/config.toml
//   - ~/.research/config.json
//   - ~/.research/config.yaml
//   - Built-in defaults
//
// RESEARCH_HOME relocates the ~/.research directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v", err)
//	}
//	client := api.NewClient(cfg.API.BaseURL).WithTimeout(cfg.API.Timeout())
package config
