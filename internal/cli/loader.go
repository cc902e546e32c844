package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/roach88/molstore/internal/config"
	"github.com/roach88/molstore/internal/database"
)

// loadConfig reads the config file at path, or returns the defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// setupLogging installs a tint handler on w. Colors are used only when w is
// a terminal.
func setupLogging(w io.Writer, level slog.Level, verbose bool) {
	if verbose {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})))
}

// databaseOptions maps the loaded config onto database options.
func (o *RootOptions) databaseOptions() database.Options {
	return database.Options{
		Compression: o.cfg.Compression,
		Probe:       o.cfg.Probe,
		Mirror:      o.cfg.Mirror,
		Now:         o.Now,
		Tokens:      o.Tokens,
	}
}

// open opens the configured database, which must exist, and reports
// failures through f.
func (o *RootOptions) open(ctx context.Context, f *OutputFormatter) (*database.Database, error) {
	dir := o.cfg.Dir
	if _, err := os.Stat(filepath.Join(dir, database.FileName)); errors.Is(err, fs.ErrNotExist) {
		msg := fmt.Sprintf("no database in %s (run molstore init first)", dir)
		if outErr := f.Error(ErrCodeNotFound, msg, nil); outErr != nil {
			return nil, outErr
		}
		return nil, NewExitError(ExitCommandError, msg)
	}
	db, err := database.New(ctx, dir, o.databaseOptions())
	if err != nil {
		return nil, f.Fail("failed to open database", err)
	}
	f.VerboseLog("Opened %s", db)
	return db, nil
}
