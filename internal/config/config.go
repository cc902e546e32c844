// Package config loads molstore settings from a CUE or JSON file.
//
// The file is unified with an embedded #Config schema that supplies
// defaults, so an empty file (or no file at all) yields a usable
// configuration.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/compression"
)

//go:embed schema.cue
var schemaCUE []byte

// Config is the decoded configuration.
type Config struct {
	Dir         string
	Compression compression.Type
	Probe       arrayfile.Probe
	Mirror      string
	LogLevel    slog.Level
}

type rawConfig struct {
	Dir         string `json:"dir"`
	Compression string `json:"compression"`
	Probe       struct {
		Timeout     string `json:"timeout"`
		MaxAttempts int    `json:"max_attempts"`
	} `json:"probe"`
	Mirror   string `json:"mirror"`
	LogLevel string `json:"log_level"`
}

// Default returns the configuration of an empty file.
func Default() (*Config, error) {
	return Parse("defaults", nil)
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Parse(path, data)
}

// Parse unifies data with the schema and decodes the result. name is used
// in error positions.
func Parse(name string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw rawConfig
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	return raw.resolve()
}

func (r rawConfig) resolve() (*Config, error) {
	ct, err := compression.Parse(r.Compression)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	timeout, err := time.ParseDuration(r.Probe.Timeout)
	if err != nil {
		return nil, fmt.Errorf("config: probe timeout: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(r.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	cfg := &Config{
		Dir:         r.Dir,
		Compression: ct,
		Probe:       arrayfile.Probe{Timeout: timeout, MaxAttempts: r.Probe.MaxAttempts},
		Mirror:      r.Mirror,
		LogLevel:    level,
	}
	if err := cfg.Probe.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Error is a configuration error with the position it was found at.
type Error struct {
	Pos     string
	Message string
}

func (e *Error) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		p := positions[0]
		return &Error{
			Pos:     fmt.Sprintf("%s:%d:%d", p.Filename(), p.Line(), p.Column()),
			Message: first.Error(),
		}
	}
	return &Error{Message: first.Error()}
}
