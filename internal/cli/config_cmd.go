// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command.
//
// Command: config [subcommand]
// Short:   Show or change configuration
//
// Examples:
//   research config show
//   research config get api.base_url
//   research config set ui.show_thinking false
//   research config init --force
//   research config env

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/research-tui/internal/config"
)

// RunConfig runs a config subcommand.
func RunConfig(args Args, w io.Writer) error {
	switch args.Subcommand {
	case "show", "list":
		return configShow(args, w)
	case "path":
		return configPath(args, w)
	case "init":
		return configInit(args, w)
	case "get":
		return configGet(args, w)
	case "set":
		return configSet(args, w)
	case "keys":
		return configKeys(args, w)
	case "env":
		return config.EnvUsage()
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   args.Subcommand,
			Reason:  "unknown config subcommand",
			Example: "research config show|path|init|get|set|keys|env",
		}
	}
}

func configShow(args Args, w io.Writer) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(w, "config show", cfg)
	}

	source := activeConfigPath(args)
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintln(w, DimStyle.Render("# effective configuration ("+source+" + environment)"))
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func configPath(args Args, w io.Writer) error {
	path := activeConfigPath(args)
	exists := path != ""
	if !exists {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
	}
	if args.JSON {
		return writeJSON(w, "config path", map[string]interface{}{"path": path, "exists": exists})
	}
	if exists {
		fmt.Fprintln(w, path)
	} else {
		fmt.Fprintf(w, "%s %s\n", path, DimStyle.Render("(not created)"))
	}
	return nil
}

func configInit(args Args, w io.Writer) error {
	path := args.ConfigPath
	if len(args.Positional) > 0 {
		path = args.Positional[0]
	}
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !args.Yes {
		return &ValidationError{Field: "path", Value: path, Reason: "config file already exists", Example: "research config init --force"}
	}
	if err := saveConfig(config.Default(), path); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(w, "config init", map[string]string{"path": path})
	}
	fmt.Fprintf(w, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

func configGet(args Args, w io.Writer) error {
	if len(args.Positional) == 0 {
		return ErrMissingArgument("key", "research config get ui.theme")
	}
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	key := args.Positional[0]
	value, err := cfg.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "research config keys"}
	}
	if args.JSON {
		return writeJSON(w, "config get", map[string]interface{}{"key": key, "value": value})
	}
	fmt.Fprintln(w, formatValue(value))
	return nil
}

// configSet edits the config file only, so values that came from the
// environment are never written back.
func configSet(args Args, w io.Writer) error {
	if len(args.Positional) < 2 {
		return ErrMissingArgument("key and value", "research config set ui.theme light")
	}
	key := args.Positional[0]
	value := strings.Join(args.Positional[1:], " ")

	path := activeConfigPath(args)
	cfg := config.Default()
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return fmt.Errorf("failed to load config %s: %w", path, err)
		}
	} else {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(w, "config set", map[string]string{"key": key, "value": value, "path": path})
	}
	fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func configKeys(args Args, w io.Writer) error {
	keys := config.GetAllKeys()
	if args.JSON {
		return writeJSON(w, "config keys", keys)
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// activeConfigPath is --config when given, else the first existing file.
func activeConfigPath(args Args) string {
	if args.ConfigPath != "" {
		return args.ConfigPath
	}
	return config.FindConfigFile()
}

// saveConfig writes cfg in the format implied by path's extension.
func saveConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return config.SaveJSON(cfg, path)
	case ".yaml", ".yml":
		return config.SaveYAML(cfg, path)
	default:
		return config.SaveTOML(cfg, path)
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
