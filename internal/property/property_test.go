package property

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/scale"
)

// newPropGroup provisions a ligand group with n labelled index rows and an
// empty property group.
func newPropGroup(t *testing.T, keys ...ir.Key) (*arrayfile.Dataset, *arrayfile.Group) {
	t.Helper()
	g, err := arrayfile.NewRoot().CreateGroup(ir.GroupLigand)
	require.NoError(t, err)
	index, err := scale.CreateIndexScale(g, scale.LigandDtype, 0, nil)
	require.NoError(t, err)
	if len(keys) > 0 {
		data, err := scale.Encode(scale.LigandDtype, keys)
		require.NoError(t, err)
		start, stop, err := scale.Allocate(index, len(keys))
		require.NoError(t, err)
		require.NoError(t, index.Write(arrayfile.Slice(start, stop), data))
	}
	props, err := CreateGroup(g, GroupName, index)
	require.NoError(t, err)
	return index, props
}

func TestCreateDataset(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"})

	scalar, err := CreateDataset(props, "formula", arrayfile.String, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, scalar.Shape())
	assert.Nil(t, Columns(scalar))

	single, err := CreateDataset(props, "E", arrayfile.Float64, []string{"E"})
	require.NoError(t, err)
	assert.Equal(t, 1, single.Ndim())

	multi, err := CreateDataset(props, "E_solv", arrayfile.Float64, []string{"Acetone", "Acetonitrile"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, multi.Shape())
	assert.Equal(t, []string{"Acetone", "Acetonitrile"}, Columns(multi))
	assert.Equal(t, scale.Name, multi.Dim(0).Label)

	_, err = CreateDataset(props, "bad", arrayfile.Float64, []string{"a", "a"})
	assert.ErrorContains(t, err, "duplicate sub-column")

	require.NoError(t, Validate(props))
}

func TestCreateGroupNeedsScale(t *testing.T) {
	root := arrayfile.NewRoot()
	plain, err := root.CreateDataset("index", arrayfile.Scalar(arrayfile.Uint64), 0)
	require.NoError(t, err)
	_, err = CreateGroup(root, GroupName, plain)
	assert.True(t, fault.IsSchema(err))
}

func TestGetOrCreate(t *testing.T) {
	_, props := newPropGroup(t)

	first, created, err := GetOrCreate(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := GetOrCreate(props, "E", arrayfile.Int64, []string{"x", "y"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, second)
}

func TestUpdateAutoResize(t *testing.T) {
	index, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"}, ir.Key{"CCC", "C1"})
	ds, err := CreateDataset(props, "formula", arrayfile.String, nil)
	require.NoError(t, err)

	first := arrayfile.FromStrings("a", "b", "c")
	require.NoError(t, Update(ds, first, arrayfile.Slice(0, 3)))
	assert.Equal(t, []string{"a", "b", "c"}, read(t, ds).Column(0).Strings())

	// Grow the scale; the dataset follows on the next update.
	_, _, err = scale.Allocate(index, 3)
	require.NoError(t, err)
	require.NoError(t, Update(ds, arrayfile.FromStrings("d", "e", "f"), arrayfile.Slice(-3, arrayfile.End)))
	assert.Equal(t, 6, ds.Len())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, read(t, ds).Column(0).Strings())
}

func TestUpdatePastEndFillsSentinels(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"})
	ds, err := CreateDataset(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)
	require.NoError(t, Update(ds, arrayfile.FromFloat64s(1, 2), arrayfile.All()))

	require.NoError(t, Update(ds, arrayfile.FromFloat64s(9), arrayfile.Positions(4)))
	assert.Equal(t, 5, ds.Len())

	values := read(t, ds).Column(0).Float64s()
	assert.Equal(t, []float64{1, 2}, values[:2], "previous rows unchanged")
	assert.True(t, math.IsNaN(values[2]))
	assert.True(t, math.IsNaN(values[3]))
	assert.Equal(t, 9.0, values[4])
}

func TestUpdateCastsAndRejects(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"})
	ds, err := CreateDataset(props, "n", arrayfile.Int64, nil)
	require.NoError(t, err)

	require.NoError(t, Update(ds, arrayfile.FromFloat64s(3, 4), arrayfile.All()))
	assert.Equal(t, []int64{3, 4}, read(t, ds).Column(0).Int64s())

	err = Update(ds, arrayfile.FromInt64s(1, 2), arrayfile.Positions(1, 0))
	assert.ErrorIs(t, err, arrayfile.ErrInvalidIndex)

	energy, err := CreateDataset(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)
	require.NoError(t, Update(energy, arrayfile.FromInt64s(-1, 3), arrayfile.All()))
	assert.Equal(t, []float64{-1, 3}, read(t, energy).Column(0).Float64s(), "-1 is stored as a value")
}

func TestRejectedUpdateLeavesDatasetUntouched(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"})
	flat, err := CreateDataset(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)
	wide, err := CreateDataset(props, "E_solv", arrayfile.Float64, []string{"a", "b"})
	require.NoError(t, err)

	err = Update(flat, arrayfile.FromFloat64s(1, 2), arrayfile.Positions(5, 2))
	assert.ErrorIs(t, err, arrayfile.ErrInvalidIndex)
	assert.Equal(t, 2, flat.Len())

	err = Update(flat, arrayfile.FromFloat64s(1, 2, 3), arrayfile.Positions(4))
	assert.ErrorContains(t, err, "selects 1 rows, data has 3")
	assert.Equal(t, 2, flat.Len())

	data := arrayfile.NewArray2D(arrayfile.Scalar(arrayfile.Float64), 2, 2)
	err = UpdateColumns(wide, []string{"a", "c"}, data, arrayfile.Positions(3, 1))
	assert.ErrorIs(t, err, arrayfile.ErrInvalidIndex)
	err = UpdateColumns(wide, []string{"a", "c"}, data, arrayfile.Positions(6))
	assert.ErrorContains(t, err, "selects 1 rows, data has 2")
	assert.Equal(t, []int{2, 2}, wide.Shape())
	assert.Equal(t, []string{"a", "b"}, Columns(wide))

	require.NoError(t, Validate(props))
}

func TestUpdateColumns(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"}, ir.Key{"CC", "C1"})
	ds, err := CreateDataset(props, "E_solv", arrayfile.Float64, []string{"Acetone", "Toluene"})
	require.NoError(t, err)

	block := arrayfile.NewArray2D(arrayfile.Scalar(arrayfile.Float64), 2, 2)
	for i, v := range []float64{-56.6, -57.9, -56.5, -57.6} {
		require.NoError(t, block.Set(i/2, i%2, 0, v))
	}
	require.NoError(t, UpdateColumns(ds, []string{"Acetone", "Toluene"}, block, arrayfile.All()))

	// Reordered and unseen names: Toluene is overwritten in place, Water
	// widens the dataset, Acetone keeps its content.
	patch := arrayfile.NewArray2D(arrayfile.Scalar(arrayfile.Float64), 1, 2)
	require.NoError(t, patch.Set(0, 0, 0, -1.0))
	require.NoError(t, patch.Set(0, 1, 0, -2.0))
	require.NoError(t, UpdateColumns(ds, []string{"Water", "Toluene"}, patch, arrayfile.At(1)))

	assert.Equal(t, []string{"Acetone", "Toluene", "Water"}, Columns(ds))
	got := read(t, ds)
	assert.Equal(t, []int{2, 3}, got.Shape())
	assert.Equal(t, -56.6, got.At(0, 0, 0))
	assert.Equal(t, -57.9, got.At(0, 1, 0))
	assert.True(t, got.IsSentinel(0, 2))
	assert.Equal(t, -56.5, got.At(1, 0, 0))
	assert.Equal(t, -2.0, got.At(1, 1, 0))
	assert.Equal(t, -1.0, got.At(1, 2, 0))

	require.NoError(t, Validate(props))
}

func TestUpdateColumnsErrors(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"})
	flat, err := CreateDataset(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, UpdateColumns(flat, []string{"E"}, arrayfile.FromFloat64s(1), arrayfile.All()), "1-D")

	wide, err := CreateDataset(props, "E_solv", arrayfile.Float64, []string{"a", "b"})
	require.NoError(t, err)
	assert.ErrorContains(t, UpdateColumns(wide, []string{"a", "b"}, arrayfile.FromFloat64s(1), arrayfile.All()), "1 columns for 2 names")
	assert.ErrorContains(t, UpdateColumns(wide, []string{"a", "a"}, arrayfile.NewArray2D(arrayfile.Scalar(arrayfile.Float64), 1, 2), arrayfile.All()), "duplicate")
}

func TestResizeToScale(t *testing.T) {
	index, props := newPropGroup(t, ir.Key{"C", "C1"})
	ds, err := CreateDataset(props, "E", arrayfile.Float64, nil)
	require.NoError(t, err)

	_, _, err = scale.Allocate(index, 2)
	require.NoError(t, err)
	assert.True(t, fault.IsSchema(Validate(props)))

	require.NoError(t, ResizeToScale(props))
	assert.Equal(t, 3, ds.Len())
	require.NoError(t, Validate(props))
}

func TestValidate(t *testing.T) {
	root := arrayfile.NewRoot()
	scale1, err := root.CreateDataset("index1", arrayfile.Scalar(arrayfile.Int64), 100)
	require.NoError(t, err)
	scale1.MakeScale("index")

	group, err := CreateGroup(root, GroupName, scale1)
	require.NoError(t, err)

	_, err = group.CreateDataset("test1", arrayfile.Scalar(arrayfile.Int64), 100)
	require.NoError(t, err)
	err = Validate(group)
	require.True(t, fault.IsSchema(err))
	assert.Contains(t, err.Error(), "missing dataset scale")
	require.NoError(t, group.Delete("test1"))

	dset1, err := group.CreateDataset("test2", arrayfile.Scalar(arrayfile.Int64), 200)
	require.NoError(t, err)
	require.NoError(t, dset1.AttachScale(0, scale1))
	err = Validate(group)
	require.True(t, fault.IsSchema(err))
	assert.Contains(t, err.Error(), "invalid dataset length")
	require.NoError(t, group.Delete("test2"))

	scale2, err := root.CreateDataset("index2", arrayfile.Scalar(arrayfile.Int64), 100)
	require.NoError(t, err)
	scale2.MakeScale("index")
	dset2, err := group.CreateDataset("test3", arrayfile.Scalar(arrayfile.Int64), 100)
	require.NoError(t, err)
	require.NoError(t, dset2.AttachScale(0, scale2))
	err = Validate(group)
	require.True(t, fault.IsSchema(err))
	assert.Contains(t, err.Error(), "invalid dataset scale")
	require.NoError(t, group.Delete("test3"))

	_, err = CreateDataset(group, "test4", arrayfile.Float64, nil)
	require.NoError(t, err)
	assert.NoError(t, Validate(group))
}

func TestToTable(t *testing.T) {
	keys := []ir.Key{{"CCC[O-]", "O4"}, {"CC[O-]", "O3"}}
	_, props := newPropGroup(t, keys...)
	ds, err := CreateDataset(props, "test", arrayfile.Float64, nil)
	require.NoError(t, err)
	require.NoError(t, Update(ds, arrayfile.FromFloat64s(0.5255945, 0.9012043), arrayfile.All()))

	table, err := ToTable(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, keys, table.Index)
	assert.Equal(t, []string{"test"}, table.Columns)
	assert.Equal(t, 2, table.Rows())
	assert.Equal(t, 0.5255945, table.Value(0, 0))

	str := arrayfile.String
	asText, err := ToTable(ds, &str)
	require.NoError(t, err)
	assert.Equal(t, "0.9012043", asText.Value(1, 0))
}

func TestToTableMultiColumn(t *testing.T) {
	_, props := newPropGroup(t, ir.Key{"C", "C1"})
	ds, err := CreateDataset(props, "E_solv", arrayfile.Float64, []string{"Acetone", "Toluene"})
	require.NoError(t, err)

	table, err := ToTable(ds, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acetone", "Toluene"}, table.Columns)
	assert.True(t, math.IsNaN(table.Value(0, 1).(float64)))
}

func read(t *testing.T, ds *arrayfile.Dataset) *arrayfile.Array {
	t.Helper()
	a, err := ds.Read(arrayfile.All())
	require.NoError(t, err)
	return a
}
