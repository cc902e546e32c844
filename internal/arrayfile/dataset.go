package arrayfile

import (
	"fmt"
	"path"
	"slices"
)

// Attrs holds dataset or group metadata as named string lists.
type Attrs map[string][]string

// Get returns the first value of key, or "".
func (a Attrs) Get(key string) string {
	if v := a[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Dim describes one axis of a dataset.
type Dim struct {
	// Label is a free-form axis name, e.g. "index" or "atoms".
	Label string

	// Scale is the absolute path of the attached dimension scale, if any.
	Scale string
}

// Dataset is a named, growable array inside a group.
type Dataset struct {
	name      string
	parent    *Group
	data      *Array
	attrs     Attrs
	dims      []Dim
	scaleName string
}

// Name returns the absolute path of the dataset.
func (d *Dataset) Name() string { return path.Join(d.parent.Name(), d.name) }

// Base returns the dataset name within its group.
func (d *Dataset) Base() string { return d.name }

// Parent returns the containing group.
func (d *Dataset) Parent() *Group { return d.parent }

// Dtype returns the cell type.
func (d *Dataset) Dtype() Dtype { return d.data.dtype }

// Len returns the length along axis 0.
func (d *Dataset) Len() int { return d.data.rows }

// Ndim returns 1 or 2.
func (d *Dataset) Ndim() int { return d.data.ndim }

// Shape returns the current shape.
func (d *Dataset) Shape() []int { return d.data.Shape() }

// Attrs returns the mutable attribute map.
func (d *Dataset) Attrs() Attrs { return d.attrs }

// Dim returns the descriptor of an axis.
func (d *Dataset) Dim(axis int) Dim { return d.dims[axis] }

// SetLabel names an axis.
func (d *Dataset) SetLabel(axis int, label string) error {
	if axis < 0 || axis >= len(d.dims) {
		return fmt.Errorf("%s: axis %d out of range", d.Name(), axis)
	}
	d.dims[axis].Label = label
	return nil
}

// MakeScale marks the dataset as a dimension scale.
func (d *Dataset) MakeScale(name string) {
	d.scaleName = name
}

// IsScale reports whether the dataset is a dimension scale.
func (d *Dataset) IsScale() bool { return d.scaleName != "" }

// ScaleName returns the scale name given to MakeScale.
func (d *Dataset) ScaleName() string { return d.scaleName }

// AttachScale binds an axis of d to a dimension scale in the same file.
func (d *Dataset) AttachScale(axis int, scale *Dataset) error {
	if axis < 0 || axis >= len(d.dims) {
		return fmt.Errorf("%s: axis %d out of range", d.Name(), axis)
	}
	if !scale.IsScale() {
		return fmt.Errorf("%s is not a dimension scale", scale.Name())
	}
	if scale == d {
		return fmt.Errorf("%s cannot be attached to itself", d.Name())
	}
	if d.parent.Root() != scale.parent.Root() {
		return fmt.Errorf("%s and %s belong to different files", d.Name(), scale.Name())
	}
	d.dims[axis].Scale = scale.Name()
	return nil
}

// Scale returns the dimension scale attached to axis, if any.
func (d *Dataset) Scale(axis int) (*Dataset, bool) {
	if axis < 0 || axis >= len(d.dims) || d.dims[axis].Scale == "" {
		return nil, false
	}
	s, err := d.parent.Root().Dataset(d.dims[axis].Scale)
	if err != nil {
		return nil, false
	}
	return s, true
}

// Resize grows the dataset to rows (and, for 2-D datasets, to cols). Axis 0
// never shrinks; axis 1 keeps its width when cols is smaller. New cells hold
// the dtype sentinel.
func (d *Dataset) Resize(rows int, cols ...int) error {
	if rows < d.data.rows {
		return fmt.Errorf("%s: cannot shrink axis 0 from %d to %d", d.Name(), d.data.rows, rows)
	}
	width := d.data.cols
	if len(cols) > 0 {
		if d.data.ndim == 1 {
			return fmt.Errorf("%s: cannot set axis 1 of a 1-D dataset", d.Name())
		}
		width = max(width, cols[0])
	}
	if rows == d.data.rows && width == d.data.cols {
		return nil
	}
	d.data.resize(rows, width)
	return nil
}

// Read returns a copy of the selected rows.
func (d *Dataset) Read(idx Index) (*Array, error) {
	rows, err := idx.Resolve(d.data.rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	return d.data.Take(rows), nil
}

// Write stores data in the selected rows. For 2-D datasets only columns
// [0, data.Cols()) of those rows are written; the rest keep their content.
func (d *Dataset) Write(idx Index, data *Array) error {
	if !data.dtype.Equal(d.data.dtype) {
		return fmt.Errorf("%s: dtype mismatch: dataset %s, data %s", d.Name(), d.data.dtype, data.dtype)
	}
	if data.ndim != d.data.ndim {
		return fmt.Errorf("%s: dimensionality mismatch: dataset %d-D, data %d-D", d.Name(), d.data.ndim, data.ndim)
	}
	if data.cols > d.data.cols {
		return fmt.Errorf("%s: data has %d columns, dataset has %d", d.Name(), data.cols, d.data.cols)
	}
	rows, err := idx.Resolve(d.data.rows)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	if len(rows) != data.rows {
		return fmt.Errorf("%s: index %s selects %d rows, data has %d", d.Name(), idx, len(rows), data.rows)
	}
	for f, c := range d.data.columns {
		for i, r := range rows {
			for k := range data.cols {
				c.copyCell(d.data.offset(r, k), data.columns[f], data.offset(i, k))
			}
		}
	}
	return nil
}

// Append grows the dataset by data.Rows() rows (and widens it if needed)
// and writes data into the new rows.
func (d *Dataset) Append(data *Array) error {
	n := d.data.rows
	cols := []int{}
	if d.data.ndim == 2 {
		cols = append(cols, data.cols)
	}
	if err := d.Resize(n+data.rows, cols...); err != nil {
		return err
	}
	return d.Write(Slice(n, End), data)
}

// AttrList returns a sorted copy of the attribute keys.
func (d *Dataset) AttrList() []string {
	keys := make([]string, 0, len(d.attrs))
	for k := range d.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
