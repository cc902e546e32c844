package arrayfile

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/molstore/internal/compression"
	"github.com/roach88/molstore/internal/fault"
)

// buildTree returns a small tree exercising every kind, both ranks,
// attributes and dimension scales.
func buildTree(t *testing.T) *Group {
	t.Helper()
	root := NewRoot()
	root.Attrs()["version"] = []string{"1"}

	g, err := root.CreateGroup("ligand")
	require.NoError(t, err)
	scale, err := g.CreateDataset("index", pairDtype, 2)
	require.NoError(t, err)
	scale.MakeScale("index")
	require.NoError(t, scale.Write(At(0), recordArray(t, "CCO", "O3")))

	atoms, err := g.CreateDataset("atoms", NewCompound(
		Field{"hetero", Bool}, Field{"serial", Int64}, Field{"x", Float64}, Field{"symbol", String},
	), 2, 3)
	require.NoError(t, err)
	require.NoError(t, atoms.AttachScale(0, scale))
	require.NoError(t, atoms.SetLabel(1, "atoms"))
	row := NewArray2D(atoms.Dtype(), 1, 2)
	require.NoError(t, row.SetRecord(0, 0, true, 1, -0.25, "C"))
	require.NoError(t, row.SetRecord(0, 1, false, 2, math.Inf(1), "O"))
	require.NoError(t, atoms.Write(At(0), row))

	props, err := g.CreateGroup("properties")
	require.NoError(t, err)
	counts, err := props.CreateDataset("count", Scalar(Uint64), 2)
	require.NoError(t, err)
	counts.Attrs()["columns"] = []string{"a", "b"}
	require.NoError(t, counts.Write(All(), FromUint64s(5, math.MaxUint64)))
	return root
}

func recordArray(t *testing.T, values ...any) *Array {
	t.Helper()
	a := NewArray(pairDtype, 1)
	require.NoError(t, a.SetRecord(0, 0, values...))
	return a
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, ct := range []compression.Type{compression.None, compression.Snappy, compression.Zlib, compression.LZ4, compression.Zstd} {
		t.Run(ct.String(), func(t *testing.T) {
			data, err := Marshal(buildTree(t), ct)
			require.NoError(t, err)

			root, got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, ct, got)
			assert.Equal(t, "1", root.Attrs().Get("version"))

			atoms, err := root.Dataset("ligand/atoms")
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3}, atoms.Shape())
			assert.Equal(t, "atoms", atoms.Dim(1).Label)
			scale, ok := atoms.Scale(0)
			require.True(t, ok)
			assert.Equal(t, "index", scale.ScaleName())

			cells, err := atoms.Read(At(0))
			require.NoError(t, err)
			assert.Equal(t, []any{true, int64(1), -0.25, "C"}, cells.Record(0, 0))
			assert.Equal(t, math.Inf(1), cells.At(0, 1, 2))
			assert.True(t, cells.IsSentinel(0, 2))

			index, err := scale.Read(All())
			require.NoError(t, err)
			assert.Equal(t, []any{"CCO", "O3"}, index.Record(0, 0))
			assert.Equal(t, []any{"", ""}, index.Record(1, 0))

			counts, err := root.Dataset("/ligand/properties/count")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, counts.Attrs()["columns"])
			assert.Equal(t, []uint64{5, math.MaxUint64}, mustRead(t, counts).Column(0).Uint64s())
		})
	}
}

func mustRead(t *testing.T, ds *Dataset) *Array {
	t.Helper()
	a, err := ds.Read(All())
	require.NoError(t, err)
	return a
}

func TestUnmarshalDetectsCorruption(t *testing.T) {
	data, err := Marshal(buildTree(t), compression.None)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		msg    string
	}{
		{"truncated", func(b []byte) []byte { return b[:10] }, "shorter than the header"},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, "bad magic"},
		{"bad version", func(b []byte) []byte { b[8] = 9; return b }, "format version"},
		{"length mismatch", func(b []byte) []byte { return append(b, 0) }, "does not match"},
		{"flipped payload bit", func(b []byte) []byte { b[headerSize+3] ^= 0x40; return b }, "checksum mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.mutate(append([]byte(nil), data...))
			_, _, err := Unmarshal(buf)
			require.ErrorIs(t, err, ErrCorrupt)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestOpenCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.molstore")

	_, err := Open(path, ReadWrite, Options{})
	require.Error(t, err, "ReadWrite requires an existing file")

	f, err := Open(path, Create, Options{Compression: compression.Zstd})
	require.NoError(t, err)
	g, err := f.Root().CreateGroup("qd")
	require.NoError(t, err)
	_, err = g.CreateDataset("index", Scalar(Uint64), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "second Close is a no-op")

	r, err := Open(path, ReadOnly, Options{Compression: compression.None})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, compression.Zstd, r.Compression())
	_, err = r.Root().Dataset("qd/index")
	assert.NoError(t, err)
	assert.Error(t, r.Flush())
}

func TestLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.molstore")
	w, err := Open(path, Create, Options{})
	require.NoError(t, err)

	_, err = Open(path, ReadOnly, Options{})
	require.Error(t, err)
	assert.True(t, fault.IsUnavailable(err))

	require.NoError(t, w.Close())

	r1, err := Open(path, ReadOnly, Options{})
	require.NoError(t, err)
	r2, err := Open(path, ReadOnly, Options{})
	require.NoError(t, err, "readers share the lock")

	_, err = Open(path, ReadWrite, Options{})
	assert.True(t, fault.IsUnavailable(err))

	require.NoError(t, r1.Close())
	require.NoError(t, r2.Close())
}

func TestCloseReleasesLockOnFlushError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.molstore")
	f, err := Open(path, Create, Options{Compression: compression.Type(0x55)})
	require.NoError(t, err)

	assert.Error(t, f.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written when marshalling fails")

	g, err := Open(path, Create, Options{})
	require.NoError(t, err, "lock was released")
	require.NoError(t, g.Discard())
}

func TestWaitAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.molstore")
	ctx := context.Background()

	require.NoError(t, WaitAvailable(ctx, path, Probe{Timeout: time.Millisecond, MaxAttempts: 1}))

	f, err := Open(path, Create, Options{})
	require.NoError(t, err)

	err = WaitAvailable(ctx, path, Probe{Timeout: time.Millisecond, MaxAttempts: 3})
	require.Error(t, err)
	assert.True(t, fault.IsUnavailable(err))
	assert.Contains(t, err.Error(), "after 3 attempt(s)")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.Close()
	}()
	require.NoError(t, WaitAvailable(ctx, path, Probe{Timeout: 5 * time.Millisecond, MaxAttempts: Unlimited}))
}

func TestWaitAvailableCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.molstore")
	f, err := Open(path, Create, Options{})
	require.NoError(t, err)
	defer f.Discard()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = WaitAvailable(ctx, path, Probe{Timeout: 10 * time.Millisecond, MaxAttempts: Unlimited})
	require.Error(t, err)
	assert.False(t, fault.IsUnavailable(err), "cancellation is not exhaustion")
}

func TestProbeValidate(t *testing.T) {
	assert.NoError(t, DefaultProbe.Validate())
	assert.NoError(t, Probe{MaxAttempts: Unlimited}.Validate())
	assert.ErrorContains(t, Probe{MaxAttempts: 0}.Validate(), "larger than 0")
	assert.ErrorContains(t, Probe{MaxAttempts: -2}.Validate(), "observed value: -2")
	assert.ErrorContains(t, Probe{Timeout: -time.Second, MaxAttempts: 1}.Validate(), "negative")
}
