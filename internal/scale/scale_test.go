package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
)

func newGroup(t *testing.T) *arrayfile.Group {
	t.Helper()
	g, err := arrayfile.NewRoot().CreateGroup("ligand")
	require.NoError(t, err)
	return g
}

func TestCreateIndexScaleAttachesSiblings(t *testing.T) {
	g := newGroup(t)
	atoms, err := g.CreateDataset("atoms", arrayfile.Scalar(arrayfile.Int64), 0, 0)
	require.NoError(t, err)
	counts, err := g.CreateDataset("atom_count", arrayfile.Scalar(arrayfile.Int64), 0)
	require.NoError(t, err)

	index, err := CreateIndexScale(g, LigandDtype, 0, map[string]string{"atoms": "atoms"})
	require.NoError(t, err)
	assert.True(t, index.IsScale())
	assert.Equal(t, Name, index.ScaleName())

	for _, ds := range []*arrayfile.Dataset{atoms, counts} {
		got, ok := ds.Scale(0)
		require.True(t, ok, ds.Name())
		assert.Same(t, index, got)
		assert.Equal(t, Name, ds.Dim(0).Label)
	}
	assert.Equal(t, "atoms", atoms.Dim(1).Label)

	found, err := Lookup(g)
	require.NoError(t, err)
	assert.Same(t, index, found)
}

func TestCreateIndexScaleSchemaErrors(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		g := newGroup(t)
		_, err := g.CreateDataset("atoms", arrayfile.Scalar(arrayfile.Int64), 2, 0)
		require.NoError(t, err)
		_, err = CreateIndexScale(g, LigandDtype, 0, nil)
		require.Error(t, err)
		assert.True(t, fault.IsSchema(err))
		assert.False(t, g.Has(Name), "nothing is created on error")
	})

	t.Run("label on 1-D dataset", func(t *testing.T) {
		g := newGroup(t)
		_, err := g.CreateDataset("atom_count", arrayfile.Scalar(arrayfile.Int64), 0)
		require.NoError(t, err)
		_, err = CreateIndexScale(g, LigandDtype, 0, map[string]string{"atom_count": "atoms"})
		require.Error(t, err)
		assert.True(t, fault.IsSchema(err))
		assert.Contains(t, err.Error(), "1-D")
	})

	t.Run("label on missing dataset", func(t *testing.T) {
		_, err := CreateIndexScale(newGroup(t), LigandDtype, 0, map[string]string{"bonds": "bonds"})
		assert.True(t, fault.IsSchema(err))
	})
}

func TestLookupMissing(t *testing.T) {
	g := newGroup(t)
	_, err := Lookup(g)
	assert.True(t, fault.IsSchema(err))

	_, err = g.CreateDataset(Name, arrayfile.Scalar(arrayfile.Uint64), 0)
	require.NoError(t, err)
	_, err = Lookup(g)
	assert.ErrorContains(t, err, "not a dimension scale")
}

func TestAllocateIsMonotonic(t *testing.T) {
	index, err := CreateIndexScale(newGroup(t), arrayfile.Scalar(arrayfile.Uint64), 0, nil)
	require.NoError(t, err)

	seen := map[int]bool{}
	prev := -1
	for _, n := range []int{3, 0, 1, 5} {
		before := index.Len()
		start, stop, err := Allocate(index, n)
		require.NoError(t, err)
		assert.Equal(t, before, start)
		assert.Equal(t, n, stop-start)
		assert.Equal(t, before+n, index.Len())
		for i := start; i < stop; i++ {
			assert.Greater(t, i, prev)
			assert.False(t, seen[i], "row %d handed out twice", i)
			seen[i] = true
			prev = i
		}
	}

	_, _, err = Allocate(index, -1)
	assert.Error(t, err)
}

func TestEncodeAndKeys(t *testing.T) {
	index, err := CreateIndexScale(newGroup(t), LigandDtype, 0, nil)
	require.NoError(t, err)

	keys := []ir.Key{{"C[O-]", "O2"}, {"CC[O-]", "O3"}}
	data, err := Encode(LigandDtype, keys)
	require.NoError(t, err)

	start, stop, err := Allocate(index, len(keys))
	require.NoError(t, err)
	require.NoError(t, index.Write(arrayfile.Slice(start, stop), data))

	got, err := Keys(index, arrayfile.All())
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	rows, err := Find(index, []ir.Key{{"CC[O-]", "O3"}, {"CCC[O-]", "O4"}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1}, rows)
}

func TestEncodeUintScale(t *testing.T) {
	data, err := Encode(arrayfile.Scalar(arrayfile.Uint64), []ir.Key{{"7"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), data.Value(0))

	_, err = Encode(arrayfile.Scalar(arrayfile.Uint64), []ir.Key{{"seven"}})
	assert.True(t, fault.IsConversion(err))

	_, err = Encode(LigandDtype, []ir.Key{{"C"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 parts")
}
