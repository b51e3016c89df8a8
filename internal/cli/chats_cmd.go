// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chats_cmd.go - Stored chat management.
//
// Command: chats [subcommand]
// Short:   List, show, rename, delete, clear and export chats
//
// Subcommands:
//   list [--limit N]                     Newest first
//   show ID                              Print the transcript
//   rename ID TITLE                      Rename a chat
//   delete ID [--yes]                    Delete one chat
//   clear --yes                          Delete every chat
//   export ID [--format F] [--output P]  Write markdown or JSON to a file

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/research-tui/internal/api"
	"github.com/jeranaias/research-tui/internal/export"
	"github.com/jeranaias/research-tui/internal/model"
	"github.com/jeranaias/research-tui/internal/util"
)

// confirmInput is where delete and clear read their confirmation.
var confirmInput io.Reader = os.Stdin

// chatListTitleWidth is the title column width in "chats list".
const chatListTitleWidth = 40

// chatSummary is one row of "chats list --json".
type chatSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	Messages  int    `json:"messages"`
}

// RunChats runs a chats subcommand.
func RunChats(ctx context.Context, args Args, w io.Writer) error {
	env, err := LoadEnv(args)
	if err != nil {
		return err
	}
	defer env.Close()
	_ = env.SetupLogging(true)
	return runChats(ctx, env, args, w)
}

func runChats(ctx context.Context, env *Env, args Args, w io.Writer) error {
	switch args.Subcommand {
	case "list", "ls":
		return chatsList(ctx, env, args, w)
	case "show", "view":
		return chatsShow(ctx, env, args, w)
	case "rename", "title":
		return chatsRename(ctx, env, args, w)
	case "delete", "rm":
		return chatsDelete(ctx, env, args, w)
	case "clear":
		return chatsClear(ctx, env, args, w)
	case "export":
		return chatsExport(ctx, env, args, w)
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   args.Subcommand,
			Reason:  "unknown chats subcommand",
			Example: "research chats list|show|rename|delete|clear|export",
		}
	}
}

func chatsList(ctx context.Context, env *Env, args Args, w io.Writer) error {
	limit := args.Limit
	if limit <= 0 {
		limit = env.Config.Chat.ListLimit
	}
	chats, err := env.Client.ListChats(ctx, limit)
	if err != nil {
		return NewCommandError("chats", "list", err)
	}

	if args.JSON {
		rows := make([]chatSummary, 0, len(chats))
		for _, c := range chats {
			rows = append(rows, summarize(c))
		}
		return writeJSON(w, "chats list", rows)
	}

	printChatList(w, chats)
	return nil
}

func summarize(c api.Chat) chatSummary {
	return chatSummary{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Messages:  len(c.Messages),
	}
}

// printChatList writes chats as an aligned table.
func printChatList(w io.Writer, chats []api.Chat) {
	if len(chats) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No chats yet."))
		return
	}
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		util.PadRight("ID", 15),
		util.PadRight("TITLE", chatListTitleWidth),
		util.PadRight("MSGS", 4),
		"CREATED")
	for _, c := range chats {
		title := c.Title
		if title == "" {
			title = model.DefaultTitle
		}
		fmt.Fprintf(w, "%s  %s  %4d  %s\n",
			util.PadRight(c.ID, 15),
			util.PadRight(util.CollapseSpace(title), chatListTitleWidth),
			len(c.Messages),
			DimStyle.Render(c.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
}

func chatsShow(ctx context.Context, env *Env, args Args, w io.Writer) error {
	id, err := requireChatID(args, "research chats show 1718031234567")
	if err != nil {
		return err
	}
	chat, err := env.Client.GetChat(ctx, id)
	if err != nil {
		return NewCommandError("chats", "show", err)
	}

	if args.JSON {
		return writeJSON(w, "chats show", chat)
	}

	fmt.Fprintln(w, TitleStyle.Render(chat.Title))
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%s | %d messages | created %s",
		chat.ID, len(chat.Messages), chat.CreatedAt.Local().Format("2006-01-02 15:04"))))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintln(w)

	opts := printOptions{
		Markdown:     env.Config.UI.Markdown && IsStdoutTTY(),
		ShowThinking: env.Config.UI.ShowThinking,
		ShowSources:  env.Config.UI.ShowSources,
	}
	for _, msg := range chat.Messages {
		printMessage(w, msg, opts)
	}
	return nil
}

func chatsRename(ctx context.Context, env *Env, args Args, w io.Writer) error {
	id, err := requireChatID(args, `research chats rename 1718031234567 "Fusion notes"`)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(strings.Join(args.Positional[1:], " "))
	if title == "" {
		return ErrMissingArgument("title", `research chats rename 1718031234567 "Fusion notes"`)
	}

	chat, err := env.Client.UpdateChatTitle(ctx, id, title)
	if err != nil {
		return NewCommandError("chats", "rename", err)
	}
	if args.JSON {
		return writeJSON(w, "chats rename", summarize(*chat))
	}
	fmt.Fprintf(w, "%s Renamed %s to %q\n", SuccessStyle.Render("[OK]"), chat.ID, chat.Title)
	return nil
}

func chatsDelete(ctx context.Context, env *Env, args Args, w io.Writer) error {
	id, err := requireChatID(args, "research chats delete 1718031234567 --yes")
	if err != nil {
		return err
	}
	if err := confirm(args, fmt.Sprintf("Delete chat %s?", id)); err != nil {
		return err
	}
	if err := env.Client.DeleteChat(ctx, id); err != nil {
		return NewCommandError("chats", "delete", err)
	}
	if args.JSON {
		return writeJSON(w, "chats delete", map[string]string{"deleted": id})
	}
	fmt.Fprintf(w, "%s Deleted chat %s\n", SuccessStyle.Render("[OK]"), id)
	return nil
}

func chatsClear(ctx context.Context, env *Env, args Args, w io.Writer) error {
	if err := confirm(args, "Delete ALL chats? This cannot be undone."); err != nil {
		return err
	}
	if err := env.Client.ClearChats(ctx); err != nil {
		return NewCommandError("chats", "clear", err)
	}
	if args.JSON {
		return writeJSON(w, "chats clear", map[string]bool{"cleared": true})
	}
	fmt.Fprintf(w, "%s All chats deleted\n", SuccessStyle.Render("[OK]"))
	return nil
}

func chatsExport(ctx context.Context, env *Env, args Args, w io.Writer) error {
	id, err := requireChatID(args, "research chats export 1718031234567 --format json")
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	if args.Output != "" {
		opts.OutputDir = args.Output
	}
	exporter, err := export.ForFormat(args.Format, opts)
	if err != nil {
		return ErrUnsupportedFormat(args.Format, export.Formats)
	}

	chat, err := env.Client.GetChat(ctx, id)
	if err != nil {
		return NewCommandError("chats", "export", err)
	}
	path, err := export.ExportToFile(chat.Conversation(), exporter, opts)
	if err != nil {
		return NewCommandError("chats", "export", err)
	}

	if args.JSON {
		return writeJSON(w, "chats export", map[string]string{"id": id, "path": path})
	}
	fmt.Fprintf(w, "%s Exported to %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func requireChatID(args Args, usage string) (string, error) {
	if len(args.Positional) == 0 || strings.TrimSpace(args.Positional[0]) == "" {
		return "", ErrMissingArgument("chat ID", usage)
	}
	return strings.TrimSpace(args.Positional[0]), nil
}

// confirm asks question on stderr unless --yes was given. Without a
// terminal the flag is required.
func confirm(args Args, question string) error {
	if args.Yes {
		return nil
	}
	if !IsTTY() {
		return &ValidationError{Field: "--yes", Reason: "confirmation required when not running interactively"}
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, _ := bufio.NewReader(confirmInput).ReadString('\n')
	if ok, err := ParseBoolString(line); err == nil && ok {
		return nil
	}
	return fmt.Errorf("aborted")
}
