package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/compression"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Dir:         ".",
		Compression: compression.Zstd,
		Probe:       arrayfile.Probe{Timeout: 5 * time.Second, MaxAttempts: 10},
		Mirror:      "",
		LogLevel:    slog.LevelInfo,
	}, cfg)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse("molstore.cue", []byte(`
dir:         "/data/cat"
compression: "lz4"
probe: {
	timeout:      "250ms"
	max_attempts: -1
}
mirror:    "/data/cat/mirror.db"
log_level: "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, "/data/cat", cfg.Dir)
	assert.Equal(t, compression.LZ4, cfg.Compression)
	assert.Equal(t, arrayfile.Probe{Timeout: 250 * time.Millisecond, MaxAttempts: arrayfile.Unlimited}, cfg.Probe)
	assert.Equal(t, "/data/cat/mirror.db", cfg.Mirror)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse("molstore.json", []byte(`{"compression": "snappy", "probe": {"max_attempts": 3}}`))
	require.NoError(t, err)
	assert.Equal(t, compression.Snappy, cfg.Compression)
	assert.Equal(t, 3, cfg.Probe.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown compression", `compression: "brotli"`},
		{"zero attempts", `probe: max_attempts: 0`},
		{"bad timeout", `probe: timeout: "soon"`},
		{"unknown field", `colour: "blue"`},
		{"syntax", `compression: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molstore.cue")
	require.NoError(t, os.WriteFile(path, []byte(`compression: "none"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, compression.None, cfg.Compression)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
