// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/research-tui/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func sampleConversation() *model.Conversation {
	conv := model.NewConversation("chat-1", "Solar power: costs")
	conv.SetClock(func() time.Time { return fixedNow })
	conv.Append(model.Message{Role: model.RoleUser, Content: "How cheap is solar now?"})
	conv.Append(model.Message{
		Role:     model.RoleAssistant,
		Content:  "Utility-scale solar is among the cheapest sources.",
		Thinking: "Look up LCOE data.\nCompare with gas.",
		Sources: []model.Source{
			{Title: "IEA Report", URL: "https://iea.example/report (2024)"},
			{URL: "https://lazard.example/lcoe"},
		},
	})
	return conv
}

func TestMarkdownExport_Content(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	for _, want := range []string{
		`title: "Solar power: costs"`,
		"chat_id: chat-1",
		"# Solar power: costs",
		"### You <sub>15:09:26</sub>",
		"### Research Assistant",
		"How cheap is solar now?",
		"<summary>Reasoning</summary>",
		"> Look up LCOE data.\n> Compare with gas.",
		"1. [IEA Report](https://iea.example/report%20%282024%29)",
		"2. [https://lazard.example/lcoe](https://lazard.example/lcoe)",
		"*Exported on March 14, 2025 at 3:09 PM*",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestMarkdownExport_OptionsExclude(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludeMetadata = false
	opts.IncludeThinking = false
	opts.IncludeSources = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	for _, unwanted := range []string{"---\ntitle:", "Reasoning", "**Sources**", "<sub>"} {
		if strings.Contains(md, unwanted) {
			t.Errorf("markdown should not contain %q", unwanted)
		}
	}
	if !strings.HasPrefix(md, "# Solar power: costs") {
		t.Errorf("expected title first, got %q", md[:40])
	}
}

func TestMarkdownExport_EscapesTitle(t *testing.T) {
	conv := model.NewConversation("x", "Test\nInjection: *bold* [link]")
	conv.Append(model.Message{Role: model.RoleUser, Content: "hi"})

	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)
	if !strings.Contains(md, `title: "Test\nInjection: *bold* [link]"`) {
		t.Errorf("front matter not quoted:\n%s", md)
	}
	if !strings.Contains(md, `# Test Injection: \*bold\* \[link\]`) {
		t.Errorf("heading not escaped:\n%s", md)
	}
}

func TestExport_EmptyConversation(t *testing.T) {
	conv := model.NewConversation("empty", "")
	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		if _, err := exp.Export(conv); !errors.Is(err, ErrNoMessages) {
			t.Errorf("%T: got %v, want ErrNoMessages", exp, err)
		}
		if _, err := exp.Export(nil); err == nil {
			t.Errorf("%T: expected error for nil conversation", exp)
		}
	}
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(testOptions(t.TempDir())).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.ID != "chat-1" || doc.Title != "Solar power: costs" {
		t.Errorf("header = %q/%q", doc.ID, doc.Title)
	}
	if !doc.ExportedAt.Equal(fixedNow) {
		t.Errorf("exported_at = %v", doc.ExportedAt)
	}
	if len(doc.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(doc.Messages))
	}
	if got := doc.Messages[1]; len(got.Sources) != 2 || got.Thinking == "" {
		t.Errorf("assistant message lost data: %+v", got)
	}
	if doc.Messages[0].ID >= doc.Messages[1].ID {
		t.Errorf("ids not increasing: %d, %d", doc.Messages[0].ID, doc.Messages[1].ID)
	}
}

func TestJSONExport_StripsExcluded(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludeThinking = false
	opts.IncludeSources = false
	conv := sampleConversation()

	out, err := NewJSONExporter(opts).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), `"thinking":`) || strings.Contains(string(out), `"sources":`) {
		t.Errorf("excluded fields present:\n%s", out)
	}

	// The conversation itself is untouched.
	last, _ := conv.Last()
	if !last.HasSources() || !last.HasThinking() {
		t.Error("export mutated the conversation")
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(filepath.Join(dir, "out"))

	path, err := ExportToFile(sampleConversation(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if want := "research_Solar_power-_costs_20250314_150926.md"; filepath.Base(path) != want {
		t.Errorf("filename = %q, want %q", filepath.Base(path), want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "# Solar power: costs") {
		t.Error("file content incomplete")
	}
}

func TestForFormat(t *testing.T) {
	for name, ext := range map[string]string{"": ".md", "markdown": ".md", "MD": ".md", "json": ".json"} {
		exp, err := ForFormat(name, nil)
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", name, err)
		}
		if exp.FileExtension() != ext {
			t.Errorf("ForFormat(%q) ext = %q, want %q", name, exp.FileExtension(), ext)
		}
	}
	if _, err := ForFormat("pdf", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"normal", "normal"},
		{"with spaces", "with_spaces"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "chat"},
		{"...", "chat"},
		{"ctrl\x01char", "ctrl-char"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}

	for _, tc := range testCases {
		if got := sanitizeFilename(tc.input); got != tc.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
