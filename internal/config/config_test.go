// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.Chat.ListLimit)
	assert.Equal(t, 5000, cfg.Chat.MaxInputRunes)
	assert.Equal(t, 64*1024, cfg.Stream.MaxFrameBytes)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Serve.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoad_TOMLPartialKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
[api]
base_url = "https://research.example.com/"

[ui]
show_thinking = false
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://research.example.com", cfg.API.BaseURL, "trailing slash trimmed")
	assert.False(t, cfg.UI.ShowThinking)
	assert.True(t, cfg.UI.ShowSources, "unspecified keys keep defaults")
	assert.Equal(t, 30, cfg.API.TimeoutSecs)
}

func TestLoad_PrecedenceTOMLOverJSON(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[chat]\nlist_limit = 25\n")
	writeFile(t, filepath.Join(dir, "config.json"), `{"chat":{"list_limit":50}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Chat.ListLimit)
}

func TestLoad_YAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.yaml"), `
serve:
  addr: "0.0.0.0:9000"
  cors_origins:
    - "https://app.example.com"
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Serve.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Serve.CORSOrigins)
}

func TestLoad_MalformedFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[api\nbase_url = ")

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg, "defaults are still returned")
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_InvalidValuesAreFatal(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[ui]\ntheme = \"neon\"\n")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "ui.theme", verrs[0].Field)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RESEARCH_API_BASE_URL", "http://10.0.0.5:8000")
	t.Setenv("RESEARCH_UI_SHOW_THINKING", "false")
	t.Setenv("RESEARCH_CHAT_MAX_INPUT_RUNES", "200")
	t.Setenv("RESEARCH_SERVE_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.API.BaseURL)
	assert.False(t, cfg.UI.ShowThinking)
	assert.Equal(t, 200, cfg.Chat.MaxInputRunes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Serve.CORSOrigins)
}

func TestEnvOverrides_WinOverFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[chat]\nlist_limit = 25\n")
	t.Setenv("RESEARCH_CHAT_LIST_LIMIT", "40")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Chat.ListLimit)
}

func TestEnvOverrides_BadValue(t *testing.T) {
	isolate(t)
	t.Setenv("RESEARCH_API_TIMEOUT_SECS", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "ftp://example.com"
	cfg.API.TimeoutSecs = 0
	cfg.Chat.ListLimit = -1
	cfg.Serve.CORSOrigins = []string{"not a url"}

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"api.base_url", "api.timeout_secs", "chat.list_limit", "serve.cors_origins"}, fields)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.API.BaseURL = "https://backend.test"
	cfg.UI.Theme = "dark"
	cfg.Serve.CORSOrigins = []string{"*"}

	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			switch filepath.Ext(name) {
			case ".toml":
				require.NoError(t, SaveTOML(cfg, path))
			case ".json":
				require.NoError(t, SaveJSON(cfg, path))
			case ".yaml":
				require.NoError(t, SaveYAML(cfg, path))
			}

			loaded, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.API.BaseURL, loaded.API.BaseURL)
			assert.Equal(t, "dark", loaded.UI.Theme)
			assert.Equal(t, []string{"*"}, loaded.Serve.CORSOrigins)

			if runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			}
		})
	}
}

func TestLoadTOML_FixesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0644))

	cfg := Default()
	require.NoError(t, LoadTOML(cfg, path))
	assert.Equal(t, "light", cfg.UI.Theme)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", v)

	require.NoError(t, cfg.Set("chat.list_limit", "42"))
	assert.Equal(t, 42, cfg.Chat.ListLimit)

	require.NoError(t, cfg.Set("ui.show-thinking", "off"))
	assert.False(t, cfg.UI.ShowThinking)

	require.NoError(t, cfg.Set("api.requests_per_second", "2.5"))
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)

	require.NoError(t, cfg.Set("serve.cors_origins", "http://x.test, http://y.test"))
	assert.Equal(t, []string{"http://x.test", "http://y.test"}, cfg.Serve.CORSOrigins)

	require.NoError(t, cfg.Set("chat.max_input_runes", 100))
	assert.Equal(t, 100, cfg.Chat.MaxInputRunes)

	_, err = cfg.Get("api.nope")
	assert.Error(t, err)
	_, err = cfg.Get("api")
	assert.Error(t, err, "sections are not values")
	assert.Error(t, cfg.Set("chat.list_limit", "many"))
	assert.Error(t, cfg.Set("ui.markdown", "maybe"))
}

func TestGetAllKeys_Resolvable(t *testing.T) {
	cfg := Default()
	keys := GetAllKeys()
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "serve.cors_origins")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Serve.CORSOrigins[0] = "http://changed.test"
	assert.Equal(t, "http://localhost:3000", cfg.Serve.CORSOrigins[0])
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				changes <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := Default()
	updated.Chat.ListLimit = 77
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changes:
		assert.Equal(t, 77, cfg.Chat.ListLimit)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// =============================================================================
// GLOBAL SINGLETON
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()
	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestSetGlobal_Visible(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Default()
	cfg.UI.Theme = "light"
	SetGlobal(cfg)
	assert.Equal(t, "light", Global().UI.Theme)
}
