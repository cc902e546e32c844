package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/database"
	"github.com/roach88/molstore/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// cliHarness runs commands against one database with a deterministic clock
// and token sequence shared by every command.
type cliHarness struct {
	t      *testing.T
	dir    string
	config string
	opts   *RootOptions
	stderr *syncBuffer
}

func newHarness(t *testing.T, extraConfig string) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "molstore.cue")
	src := fmt.Sprintf("dir: %q\nprobe: {\n\ttimeout: \"10ms\"\n\tmax_attempts: 3\n}\n%s", filepath.Join(dir, "db"), extraConfig)
	require.NoError(t, os.WriteFile(config, []byte(src), 0o644))

	return &cliHarness{
		t:      t,
		dir:    filepath.Join(dir, "db"),
		config: config,
		opts: &RootOptions{
			Now:    testutil.NewClock().Now,
			Tokens: testutil.NewSequentialTokens("update"),
		},
		stderr: &syncBuffer{},
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	cmd := NewRootCommandWith(h.opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(h.stderr)
	cmd.SetArgs(append(args, "--config", h.config))
	err := cmd.Execute()
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "molstore %v: %s", args, out)
	return out
}

func assertGolden(t *testing.T, name, got string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(got))
}

func TestInitCreatesDatabase(t *testing.T) {
	h := newHarness(t, "")
	out := h.mustRun("init", "--format", "json")

	var resp struct {
		Status string     `json:"status"`
		Data   InitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, filepath.Join(h.dir, database.FileName), resp.Data.Path)
	assert.Equal(t, "zstd", resp.Data.Compression)
	assert.Equal(t, []string{"ligand", "qd"}, resp.Data.Groups)

	out = h.mustRun("init")
	assert.Contains(t, out, "Database ready", "init is repeatable")
}

func TestCommandsNeedDatabase(t *testing.T) {
	h := newHarness(t, "")
	out, err := h.run("dump", "ligand")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.Contains(t, out, "run molstore init first")
}

func TestImportDumpAndLog(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")

	out := h.mustRun("import", filepath.Join("testdata", "ligands.yaml"))
	assertGolden(t, "import_ligands", out)

	out = h.mustRun("dump", "ligand")
	assertGolden(t, "dump_ligand", out)

	h.mustRun("import", filepath.Join("testdata", "update.yaml"))
	out = h.mustRun("log", "ligand")
	assertGolden(t, "log_ligand", out)

	out = h.mustRun("log", "ligand", "--token", "update-0002", "--format", "json")
	var resp struct {
		Data LogResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, []int{1}, resp.Data.Entries[0].Index)
	assert.Equal(t, LogStats{Entries: 1, Tokens: 1}, resp.Data.Stats)
}

func TestDumpJSON(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")
	h.mustRun("import", filepath.Join("testdata", "ligands.yaml"))

	out := h.mustRun("dump", "ligand", "--key", "CC[O-] O3", "--molecules", "--format", "json")
	var resp struct {
		Data struct {
			Group   string           `json:"group"`
			Records []map[string]any `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Records, 1)
	rec := resp.Data.Records[0]
	assert.Equal(t, "CC[O-]", rec["smiles"])
	assert.Equal(t, "O3", rec["anchor"])
	assert.Equal(t, float64(1), rec["hdf5 index"])
	assert.Equal(t, map[string]any{"Acetone": -56.5, "Acetonitrile": nil}, rec["E_solv"])
	mol, ok := rec["mol"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, mol["atoms"], 3)

	out = h.mustRun("dump", "ligand", "--key", "N N1", "--key", "CC[O-] O3", "--keep-missing")
	assert.Contains(t, out, "ligand: 2 record(s)")
	assert.Contains(t, out, "[1] CC[O-] O3 opt=false")
	assert.Contains(t, out, "[-1] N N1 opt=false\n    E_solv: Acetone=- Acetonitrile=-")
}

func TestImportConversionFailureWritesNothing(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")

	out, err := h.run("import", filepath.Join("testdata", "broken.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E102]")

	out = h.mustRun("dump", "ligand")
	assert.Equal(t, "ligand: 0 record(s)\n", out)
	out = h.mustRun("log", "ligand")
	assert.Equal(t, "ligand: no log entries\n", out)
}

func TestImportRejectsBadBatch(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")

	out, err := h.run("import", filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestImportWaitsForLock(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")

	holder, err := arrayfile.Open(filepath.Join(h.dir, database.FileName), arrayfile.ReadWrite, arrayfile.Options{})
	require.NoError(t, err)
	defer holder.Discard()

	out, err := h.run("import", filepath.Join("testdata", "ligands.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitUnavailable, GetExitCode(err))
	assert.Contains(t, out, "Error [E103]")
	assert.Contains(t, h.stderr.String(), "array file is currently unavailable")
}

func TestValidateReportsProblems(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")
	h.mustRun("import", filepath.Join("testdata", "ligands.yaml"))

	out := h.mustRun("validate")
	assert.Equal(t, "ligand: valid\nqd: valid\n", out)

	f, err := arrayfile.Open(filepath.Join(h.dir, database.FileName), arrayfile.ReadWrite, arrayfile.Options{})
	require.NoError(t, err)
	props, err := f.Root().Group("ligand/properties")
	require.NoError(t, err)
	_, err = props.CreateDataset("orphan", arrayfile.Scalar(arrayfile.Float64), 2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err = h.run("validate", "ligand")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ligand: 1 problem(s)")
	assert.Contains(t, out, "missing dataset scale")
}

func TestMirrorCommand(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")
	out, err := h.run("mirror", "ligand")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E006]")

	m := newHarness(t, fmt.Sprintf("mirror: %q\n", filepath.Join(t.TempDir(), "mirror.db")))
	m.mustRun("init")
	m.mustRun("import", filepath.Join("testdata", "ligands.yaml"))

	out = m.mustRun("mirror", "ligand")
	assert.Equal(t, "ligand -> ligand_database: 2 inserted, 0 replaced, 0 skipped\n", out)
	out = m.mustRun("mirror", "ligand")
	assert.Equal(t, "ligand -> ligand_database: 0 inserted, 0 replaced, 2 skipped\n", out)
	out = m.mustRun("mirror", "ligand", "--overwrite")
	assert.Equal(t, "ligand -> ligand_database: 0 inserted, 2 replaced, 0 skipped\n", out)
}

func TestLogFollow(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("init")
	h.mustRun("import", filepath.Join("testdata", "ligands.yaml"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	cmd := NewRootCommandWith(&RootOptions{})
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"log", "ligand", "--follow", "--config", h.config})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	lines := func() int { return strings.Count(out.String(), "\n") }
	require.Eventually(t, func() bool { return lines() == 4 }, 5*time.Second, 10*time.Millisecond)

	h.mustRun("import", filepath.Join("testdata", "update.yaml"))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "update-0002") }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, lines())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("log --follow did not stop after cancellation")
	}
}
