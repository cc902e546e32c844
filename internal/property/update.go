package property

import (
	"fmt"
	"slices"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
)

// Update writes data into the rows of ds selected by idx.
//
// ds first grows to max(current length, index scale length, last addressed
// row + 1); rows exposed by the growth hold the dtype sentinel until
// written. Positions must be strictly ascending. Primitive data of another
// kind is cast to the dataset's kind. A rejected call leaves ds untouched.
func Update(ds *arrayfile.Dataset, data *arrayfile.Array, idx arrayfile.Index) error {
	data, err := conform(ds, data)
	if err != nil {
		return err
	}
	if data.Ndim() != ds.Ndim() {
		return fmt.Errorf("update property %s: %d-D data for a %d-D dataset", ds.Name(), data.Ndim(), ds.Ndim())
	}
	if ds.Ndim() == 2 && data.Cols() > ds.Shape()[1] {
		return fmt.Errorf("update property %s: data has %d columns, dataset has %d", ds.Name(), data.Cols(), ds.Shape()[1])
	}
	rows, err := target(ds, idx, data.Rows())
	if err != nil {
		return err
	}
	if err := growTo(ds, rows); err != nil {
		return err
	}
	if err := ds.Write(idx, data); err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	return nil
}

// UpdateColumns writes data, whose columns are named by subColumns, into the
// matching columns of a 2-D dataset. Unseen names widen the dataset and are
// appended to its "columns" attribute; columns not named keep their content.
// A 1-D data array is accepted when a single sub-column is given. A rejected
// call leaves ds, and its "columns" attribute, untouched.
func UpdateColumns(ds *arrayfile.Dataset, subColumns []string, data *arrayfile.Array, idx arrayfile.Index) error {
	if ds.Ndim() != 2 {
		return fmt.Errorf("update columns of %s: dataset is %d-D", ds.Name(), ds.Ndim())
	}
	if dup := firstDuplicate(subColumns); dup != "" {
		return fmt.Errorf("update columns of %s: duplicate sub-column %q", ds.Name(), dup)
	}
	if data.Cols() != len(subColumns) {
		return fmt.Errorf("update columns of %s: data has %d columns for %d names", ds.Name(), data.Cols(), len(subColumns))
	}
	data, err := conform(ds, data)
	if err != nil {
		return err
	}
	rows, err := target(ds, idx, data.Rows())
	if err != nil {
		return err
	}

	names := slices.Clone(ds.Attrs()[ColumnsAttr])
	if width := ds.Shape()[1]; len(names) != width {
		return fault.Schema(ds.Name(), "%q attribute names %d columns, dataset has %d", ColumnsAttr, len(names), width)
	}
	targets := make([]int, len(subColumns))
	for j, sub := range subColumns {
		pos := slices.Index(names, sub)
		if pos < 0 {
			names = append(names, sub)
			pos = len(names) - 1
		}
		targets[j] = pos
	}
	if err := ds.Resize(ds.Len(), len(names)); err != nil {
		return fmt.Errorf("update columns of %s: %w", ds.Name(), err)
	}
	ds.Attrs()[ColumnsAttr] = names

	if err := growTo(ds, rows); err != nil {
		return err
	}
	current, err := ds.Read(idx)
	if err != nil {
		return fmt.Errorf("update columns of %s: %w", ds.Name(), err)
	}
	for i := range data.Rows() {
		for j, pos := range targets {
			if err := current.Set(i, pos, 0, data.At(i, j, 0)); err != nil {
				return fmt.Errorf("update columns of %s: %w", ds.Name(), err)
			}
		}
	}
	if err := ds.Write(idx, current); err != nil {
		return fmt.Errorf("update columns of %s: %w", ds.Name(), err)
	}
	return nil
}

// ResizeToScale grows every dataset in group to the length of its index.
func ResizeToScale(group *arrayfile.Group) error {
	index, err := IndexOf(group)
	if err != nil {
		return err
	}
	for _, ds := range group.Datasets() {
		if ds.Len() >= index.Len() {
			continue
		}
		if err := ds.Resize(index.Len()); err != nil {
			return fmt.Errorf("resize %s to scale: %w", ds.Name(), err)
		}
	}
	return nil
}

// target returns the length ds must grow to for idx, after checking that
// idx selects exactly n rows at that length. ds is not modified.
func target(ds *arrayfile.Dataset, idx arrayfile.Index, n int) (int, error) {
	rows := ds.Len()
	if index, ok := ds.Scale(0); ok {
		rows = max(rows, index.Len())
	}
	rows = idx.Bound(rows)
	sel, err := idx.Resolve(rows)
	if err != nil {
		return 0, fmt.Errorf("update property %s: %w", ds.Name(), err)
	}
	if len(sel) != n {
		return 0, fmt.Errorf("update property %s: index %s selects %d rows, data has %d", ds.Name(), idx, len(sel), n)
	}
	return rows, nil
}

// growTo resizes ds to rows when it is shorter.
func growTo(ds *arrayfile.Dataset, rows int) error {
	if rows <= ds.Len() {
		return nil
	}
	if err := ds.Resize(rows); err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	return nil
}

// conform casts primitive data to the dataset kind.
func conform(ds *arrayfile.Dataset, data *arrayfile.Array) (*arrayfile.Array, error) {
	if data.Dtype().Equal(ds.Dtype()) {
		return data, nil
	}
	if ds.Dtype().IsCompound() {
		return nil, fmt.Errorf("update property %s: dtype mismatch: dataset %s, data %s", ds.Name(), ds.Dtype(), data.Dtype())
	}
	cast, err := data.Cast(ds.Dtype().Kind)
	if err != nil {
		return nil, fmt.Errorf("update property %s: %w", ds.Name(), err)
	}
	return cast, nil
}

