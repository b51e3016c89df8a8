// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides. Keys are derived from
// the section and field names, e.g. RESEARCH_API_BASE_URL,
// RESEARCH_UI_SHOW_THINKING, RESEARCH_SERVE_CORS_ORIGINS (comma-separated).
const EnvPrefix = "RESEARCH"

var dotEnvOnce sync.Once

// LoadDotEnv loads .env from the working directory and the config directory.
// Variables already present in the environment win. Runs once per process.
func LoadDotEnv() {
	dotEnvOnce.Do(func() {
		files := []string{".env"}
		if dir, err := ConfigDir(); err == nil {
			files = append(files, filepath.Join(dir, ".env"))
		}
		for _, f := range files {
			if _, err := os.Stat(f); err != nil {
				continue
			}
			// godotenv.Load never overrides variables that are already set.
			_ = godotenv.Load(f)
		}
	})
}

// ApplyEnvOverrides applies RESEARCH_* environment variables on top of the
// current values. Unset variables leave fields untouched.
func (c *Config) ApplyEnvOverrides() error {
	return envconfig.Process(EnvPrefix, c)
}

// EnvUsage writes the list of recognized environment variables to stdout.
func EnvUsage() error {
	return envconfig.Usage(EnvPrefix, Default())
}
