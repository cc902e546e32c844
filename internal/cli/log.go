package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/changelog"
	"github.com/roach88/molstore/internal/database"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Token  string // optional - filter to one update call
	Follow bool
}

// LogResult holds the change log of one group.
type LogResult struct {
	Group   string            `json:"group"`
	Entries []changelog.Entry `json:"entries"`
	Stats   LogStats          `json:"stats"`
}

// LogStats holds summary statistics for a change log.
type LogStats struct {
	Entries int `json:"entries"`
	Tokens  int `json:"tokens"`
}

func (r LogResult) String() string {
	if len(r.Entries) == 0 {
		return fmt.Sprintf("%s: no log entries", r.Group)
	}
	lines := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		lines[i] = entryText(e)
	}
	return strings.Join(lines, "\n")
}

func entryText(e changelog.Entry) string {
	return fmt.Sprintf("%s %s [%s] %s", e.Date.Format(time.RFC3339), e.Token, changelog.FormatRanges(e.Index), e.Message)
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <group>",
		Short: "Show the change log of a group",
		Long: `Show the change log of a record group, oldest entry first.

Every update call stamps its entries with one token; --token narrows the
output to a single call. With --follow the command keeps running and prints
entries as later updates append them, one line (or one JSON object) each.

Examples:
  molstore log --dir ./db ligand
  molstore log --dir ./db ligand --token 01920000-0000-7000-8000-000000000000
  molstore log --dir ./db qd --follow --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "only show entries of this update token")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep printing new entries")

	return cmd
}

func runLog(opts *LogOptions, group string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.open(cmd.Context(), formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Log(cmd.Context(), group)
	if err != nil {
		return formatter.Fail("failed to read change log", err)
	}

	if opts.Follow {
		return followLog(cmd.Context(), db, group, opts, cmd.OutOrStdout(), entries)
	}

	entries = filterEntries(entries, opts.Token)
	tokens := make(map[string]bool)
	for _, e := range entries {
		tokens[e.Token] = true
	}
	return formatter.Success(LogResult{
		Group:   group,
		Entries: entries,
		Stats:   LogStats{Entries: len(entries), Tokens: len(tokens)},
	})
}

func filterEntries(entries []changelog.Entry, token string) []changelog.Entry {
	if token == "" {
		return entries
	}
	var out []changelog.Entry
	for _, e := range entries {
		if e.Token == token {
			out = append(out, e)
		}
	}
	return out
}

// followLog prints the entries read so far and then every entry appended
// after them, until ctx is done. The array file is replaced on every write,
// so the watch is on its directory.
func followLog(ctx context.Context, db *database.Database, group string, opts *LogOptions, w io.Writer, seen []changelog.Entry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch database", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(db.Path)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch database", err)
	}

	printed := 0
	emit := func(entries []changelog.Entry) error {
		for _, e := range filterEntries(entries[printed:], opts.Token) {
			if err := writeEntry(w, opts.Format, e); err != nil {
				return err
			}
		}
		printed = len(entries)
		return nil
	}
	if err := emit(seen); err != nil {
		return err
	}

	// retry fires when a reread lost the race against a writer.
	var retry <-chan time.Time
	reread := func() error {
		retry = nil
		entries, err := db.Log(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("failed to reread change log", "path", db.Path, "error", err)
			retry = time.After(db.Probe.Timeout)
			return nil
		}
		return emit(entries)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry:
			if err := reread(); err != nil {
				return err
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != db.Path || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)) {
				continue
			}
			if err := reread(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("error watching database", "path", db.Path, "error", err)
		}
	}
}

func writeEntry(w io.Writer, format string, e changelog.Entry) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(e)
	}
	_, err := fmt.Fprintln(w, entryText(e))
	return err
}
