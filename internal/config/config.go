// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/research-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete research client configuration.
type Config struct {
	API    APIConfig    `toml:"api" json:"api" yaml:"api"`
	Stream StreamConfig `toml:"stream" json:"stream" yaml:"stream"`
	UI     UIConfig     `toml:"ui" json:"ui" yaml:"ui"`
	Chat   ChatConfig   `toml:"chat" json:"chat" yaml:"chat"`
	Serve  ServeConfig  `toml:"serve" json:"serve" yaml:"serve"`
	Log    LogConfig    `toml:"log" json:"log" yaml:"log"`
}

// APIConfig configures the HTTP client that talks to the research backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url" split_words:"true"`

	// TimeoutSecs bounds non-streaming requests. Streams are bounded only by cancellation.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs" split_words:"true"`

	// RequestsPerSecond and Burst configure the client-side rate limiter (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second" split_words:"true"`
	Burst             int     `toml:"burst" json:"burst" yaml:"burst" split_words:"true"`

	// MaxRetries applies to idempotent requests only.
	MaxRetries int `toml:"max_retries" json:"max_retries" yaml:"max_retries" split_words:"true"`
}

// StreamConfig configures frame decoding.
type StreamConfig struct {
	// MaxFrameBytes is the largest frame accepted before it is dropped.
	MaxFrameBytes int `toml:"max_frame_bytes" json:"max_frame_bytes" yaml:"max_frame_bytes" split_words:"true"`
}

// UIConfig contains display settings for the TUI and line-mode output.
type UIConfig struct {
	Theme        string `toml:"theme" json:"theme" yaml:"theme" split_words:"true"`
	ShowThinking bool   `toml:"show_thinking" json:"show_thinking" yaml:"show_thinking" split_words:"true"`
	ShowSources  bool   `toml:"show_sources" json:"show_sources" yaml:"show_sources" split_words:"true"`
	ShowStats    bool   `toml:"show_stats" json:"show_stats" yaml:"show_stats" split_words:"true"`
	Markdown     bool   `toml:"markdown" json:"markdown" yaml:"markdown" split_words:"true"`

	// RenderFPS caps how often streamed text is redrawn.
	RenderFPS int `toml:"render_fps" json:"render_fps" yaml:"render_fps" split_words:"true"`
}

// ChatConfig contains conversation behavior settings.
type ChatConfig struct {
	// ListLimit is the default number of chats returned by list operations.
	ListLimit int `toml:"list_limit" json:"list_limit" yaml:"list_limit" split_words:"true"`

	// MaxInputRunes rejects longer messages before they are sent.
	MaxInputRunes int `toml:"max_input_runes" json:"max_input_runes" yaml:"max_input_runes" split_words:"true"`

	// AutoTitle renames a chat from its first message.
	AutoTitle bool `toml:"auto_title" json:"auto_title" yaml:"auto_title" split_words:"true"`
}

// ServeConfig configures the built-in mock backend.
type ServeConfig struct {
	Addr        string   `toml:"addr" json:"addr" yaml:"addr" split_words:"true"`
	CORSOrigins []string `toml:"cors_origins" json:"cors_origins" yaml:"cors_origins" split_words:"true"`

	// TokenDelayMs spaces out streamed words so clients see incremental output.
	TokenDelayMs int `toml:"token_delay_ms" json:"token_delay_ms" yaml:"token_delay_ms" split_words:"true"`

	// Metrics exposes /metrics when true.
	Metrics bool `toml:"metrics" json:"metrics" yaml:"metrics" split_words:"true"`
}

// LogConfig controls where diagnostic logs go.
type LogConfig struct {
	// File receives logs while the TUI owns the terminal. Empty means ~/.research/research.log.
	File    string `toml:"file" json:"file" yaml:"file" split_words:"true"`
	Verbose bool   `toml:"verbose" json:"verbose" yaml:"verbose" split_words:"true"`
}

// Timeout returns APIConfig.TimeoutSecs as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// TokenDelay returns ServeConfig.TokenDelayMs as a duration.
func (s ServeConfig) TokenDelay() time.Duration {
	return time.Duration(s.TokenDelayMs) * time.Millisecond
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			TimeoutSecs:       30,
			RequestsPerSecond: 0,
			Burst:             1,
			MaxRetries:        3,
		},
		Stream: StreamConfig{
			MaxFrameBytes: 64 * 1024,
		},
		UI: UIConfig{
			Theme:        "auto",
			ShowThinking: true,
			ShowSources:  true,
			ShowStats:    false,
			Markdown:     true,
			RenderFPS:    30,
		},
		Chat: ChatConfig{
			ListLimit:     10,
			MaxInputRunes: 5000,
			AutoTitle:     true,
		},
		Serve: ServeConfig{
			Addr:         "127.0.0.1:8000",
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:3001"},
			TokenDelayMs: 40,
			Metrics:      true,
		},
		Log: LogConfig{},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDirEnv overrides the configuration directory when set.
const ConfigDirEnv = "RESEARCH_HOME"

// ConfigDir returns the research configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return util.ExpandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".research"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// LogPath returns the log file path, honoring Log.File.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return util.ExpandHome(c.Log.File)
	}
	return configPath("research.log")
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// FindConfigFile returns the first existing config file in precedence order
// (TOML, JSON, YAML), or "" when none exists.
func FindConfigFile() string {
	for _, fn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON, ConfigPathYAML} {
		path, err := fn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ensureSecurePermissions tightens config files to 0600.
// SECURITY: config may be shared on multi-user hosts.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found in ConfigDir,
// then applies .env files and RESEARCH_* environment overrides.
//
// A file that fails to parse is reported but does not prevent startup:
// defaults plus environment overrides are returned alongside the error.
// Validation failures are fatal.
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	var loadErr error

	if path := FindConfigFile(); path != "" {
		if err := LoadFile(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load config %s: %w", path, err)
			cfg = Default()
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFile decodes path into cfg, choosing the format by extension.
// Unknown extensions are treated as TOML.
func LoadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(cfg, path)
	case ".yaml", ".yml":
		return LoadYAML(cfg, path)
	default:
		return LoadTOML(cfg, path)
	}
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

func warnPermissions(path string) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# research client configuration\n")
	b.WriteString("# Values here are overridden by RESEARCH_* environment variables.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML saves the configuration to a YAML file with 0600 permissions.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidThemes lists the accepted UI.Theme values.
var ValidThemes = []string{"auto", "dark", "light"}

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		add("api.base_url", "must be an absolute URL, got %q", c.API.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 1 and 600, got %d", c.API.TimeoutSecs)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "must not be negative, got %g", c.API.RequestsPerSecond)
	}
	if c.API.Burst < 1 {
		add("api.burst", "must be at least 1, got %d", c.API.Burst)
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		add("api.max_retries", "must be between 0 and 10, got %d", c.API.MaxRetries)
	}

	if c.Stream.MaxFrameBytes < 1024 || c.Stream.MaxFrameBytes > 16<<20 {
		add("stream.max_frame_bytes", "must be between 1024 and %d, got %d", 16<<20, c.Stream.MaxFrameBytes)
	}

	if !contains(ValidThemes, c.UI.Theme) {
		add("ui.theme", "must be one of %s, got %q", strings.Join(ValidThemes, ", "), c.UI.Theme)
	}
	if c.UI.RenderFPS < 1 || c.UI.RenderFPS > 120 {
		add("ui.render_fps", "must be between 1 and 120, got %d", c.UI.RenderFPS)
	}

	if c.Chat.ListLimit < 1 || c.Chat.ListLimit > 1000 {
		add("chat.list_limit", "must be between 1 and 1000, got %d", c.Chat.ListLimit)
	}
	if c.Chat.MaxInputRunes < 1 {
		add("chat.max_input_runes", "must be positive, got %d", c.Chat.MaxInputRunes)
	}

	if c.Serve.Addr == "" {
		add("serve.addr", "must not be empty")
	}
	if c.Serve.TokenDelayMs < 0 {
		add("serve.token_delay_ms", "must not be negative, got %d", c.Serve.TokenDelayMs)
	}
	for _, origin := range c.Serve.CORSOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Host == "" {
			add("serve.cors_origins", "invalid origin %q", origin)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by partial files.
func (c *Config) SetDefaults() {
	d := Default()

	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.Burst == 0 {
		c.API.Burst = d.API.Burst
	}
	if c.Stream.MaxFrameBytes == 0 {
		c.Stream.MaxFrameBytes = d.Stream.MaxFrameBytes
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	if c.UI.RenderFPS == 0 {
		c.UI.RenderFPS = d.UI.RenderFPS
	}
	if c.Chat.ListLimit == 0 {
		c.Chat.ListLimit = d.Chat.ListLimit
	}
	if c.Chat.MaxInputRunes == 0 {
		c.Chat.MaxInputRunes = d.Chat.MaxInputRunes
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type, and slices accept comma-separated lists.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					boolVal = true
				case "no", "off":
					boolVal = false
				default:
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Serve.CORSOrigins != nil {
		clone.Serve.CORSOrigins = append([]string(nil), c.Serve.CORSOrigins...)
	}
	return &clone
}

// String returns an indented JSON rendering for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if cfg == nil {
		return err
	}
	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return err
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
