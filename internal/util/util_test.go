// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	data := []byte(`{"id":"abc"}`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "2025", "chat.md")

	if err := AtomicWriteFile(path, []byte("# Chat"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("File was not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := AtomicWriteFile(path, []byte("first"), 0600); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "second" {
		t.Errorf("got %q, want %q", content, "second")
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "secret.toml")
	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0600 {
		t.Errorf("mode = %o, want 600", got)
	}
}

func TestAtomicWriteFileWithDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	dir := filepath.Join(t.TempDir(), "private")
	path := filepath.Join(dir, "research.log")

	if err := AtomicWriteFileWithDir(path, []byte("log"), 0600, 0700); err != nil {
		t.Fatalf("AtomicWriteFileWithDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode().Perm(); got != 0700 {
		t.Errorf("dir mode = %o, want 700", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.research/config.toml")
	if err != nil {
		t.Fatalf("ExpandHome: %v", err)
	}
	if want := filepath.Join(home, ".research", "config.toml"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, _ = ExpandHome("~")
	if got != home {
		t.Errorf("got %q, want %q", got, home)
	}

	got, _ = ExpandHome("/etc/research.toml")
	if got != "/etc/research.toml" {
		t.Errorf("absolute path changed: %q", got)
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input    string
		max      int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"日本語テキスト", 5, "日本..."},
		{"café au lait", 6, "caf..."},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := TruncateRunes(tc.input, tc.max); got != tc.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.expected)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		maxWidth int
		expected string
	}{
		{"ascii short", "hello", 10, "hello"},
		{"ascii exact", "hello", 5, "hello"},
		{"ascii truncate", "hello world", 8, "hello..."},
		{"cjk fits", "日本語", 6, "日本語"},
		{"cjk truncate", "日本語テキスト", 7, "日本..."},
		{"tiny width", "hello", 2, "he"},
		{"zero width", "hello", 0, ""},
		{"empty", "", 5, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateWidth(tc.input, tc.maxWidth)
			if got != tc.expected {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.input, tc.maxWidth, got, tc.expected)
			}
			if w := StringWidth(got); w > tc.maxWidth && tc.maxWidth > 0 {
				t.Errorf("width %d exceeds %d", w, tc.maxWidth)
			}
		})
	}
}

func TestStringWidth(t *testing.T) {
	testCases := []struct {
		input    string
		expected int
	}{
		{"hello", 5},
		{"", 0},
		{"日本語", 6},
		{"hello世界", 9},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := StringWidth(tc.input); got != tc.expected {
				t.Errorf("StringWidth(%q) = %d, want %d", tc.input, got, tc.expected)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("日本", 6); got != "日本  " {
		t.Errorf("PadRight wide = %q", got)
	}
	if got := PadRight("abcdefgh", 6); StringWidth(got) != 6 {
		t.Errorf("PadRight overflow = %q (width %d)", got, StringWidth(got))
	}
}

func TestCollapseSpace(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{"one", "one"},
		{"  leading and trailing  ", "leading and trailing"},
		{"tabs\tand\nnewlines\r\n here", "tabs and newlines here"},
	}

	for _, tc := range testCases {
		if got := CollapseSpace(tc.input); got != tc.expected {
			t.Errorf("CollapseSpace(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestRuneLen(t *testing.T) {
	if got := RuneLen("日本語"); got != 3 {
		t.Errorf("RuneLen = %d, want 3", got)
	}
	if got := RuneLen("hello 👋"); got != 7 {
		t.Errorf("RuneLen = %d, want 7", got)
	}
}
