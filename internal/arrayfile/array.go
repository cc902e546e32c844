package arrayfile

import (
	"fmt"
)

// Array is an in-memory 1-D or 2-D array of a Dtype, stored row-major with
// one Column per field.
type Array struct {
	dtype   Dtype
	ndim    int
	rows    int
	cols    int
	columns []*Column
}

// NewArray returns a 1-D array of rows sentinel cells.
func NewArray(dt Dtype, rows int) *Array {
	return newArray(dt, 1, rows, 1)
}

// NewArray2D returns a 2-D array of rows x cols sentinel cells.
func NewArray2D(dt Dtype, rows, cols int) *Array {
	return newArray(dt, 2, rows, cols)
}

func newArray(dt Dtype, ndim, rows, cols int) *Array {
	a := &Array{dtype: dt, ndim: ndim, rows: rows, cols: cols}
	a.columns = make([]*Column, dt.NumFields())
	for f := range a.columns {
		a.columns[f] = NewColumn(dt.FieldKind(f), rows*cols)
	}
	return a
}

// FromInt64s wraps values in a 1-D Int64 array.
func FromInt64s(values ...int64) *Array {
	a := NewArray(Scalar(Int64), len(values))
	copy(a.columns[0].ints, values)
	return a
}

// FromUint64s wraps values in a 1-D Uint64 array.
func FromUint64s(values ...uint64) *Array {
	a := NewArray(Scalar(Uint64), len(values))
	copy(a.columns[0].uints, values)
	return a
}

// FromFloat64s wraps values in a 1-D Float64 array.
func FromFloat64s(values ...float64) *Array {
	a := NewArray(Scalar(Float64), len(values))
	copy(a.columns[0].floats, values)
	return a
}

// FromBools wraps values in a 1-D Bool array.
func FromBools(values ...bool) *Array {
	a := NewArray(Scalar(Bool), len(values))
	copy(a.columns[0].bools, values)
	return a
}

// FromStrings wraps values in a 1-D String array.
func FromStrings(values ...string) *Array {
	a := NewArray(Scalar(String), len(values))
	copy(a.columns[0].strs, values)
	return a
}

// Dtype returns the cell type.
func (a *Array) Dtype() Dtype { return a.dtype }

// Ndim returns 1 or 2.
func (a *Array) Ndim() int { return a.ndim }

// Rows returns the length along axis 0.
func (a *Array) Rows() int { return a.rows }

// Cols returns the length along axis 1 (1 for 1-D arrays).
func (a *Array) Cols() int { return a.cols }

// Shape returns the array shape.
func (a *Array) Shape() []int {
	if a.ndim == 1 {
		return []int{a.rows}
	}
	return []int{a.rows, a.cols}
}

// Column returns the flat storage of field f.
func (a *Array) Column(f int) *Column { return a.columns[f] }

func (a *Array) offset(row, col int) int {
	return row*a.cols + col
}

// At returns field f of cell (row, col).
func (a *Array) At(row, col, f int) any {
	return a.columns[f].Get(a.offset(row, col))
}

// Set stores v in field f of cell (row, col).
func (a *Array) Set(row, col, f int, v any) error {
	if row < 0 || row >= a.rows || col < 0 || col >= a.cols {
		return fmt.Errorf("cell (%d, %d) out of bounds for shape %v", row, col, a.Shape())
	}
	if err := a.columns[f].Set(a.offset(row, col), v); err != nil {
		return fmt.Errorf("cell (%d, %d): %w", row, col, err)
	}
	return nil
}

// Value returns cell row of a 1-D primitive array.
func (a *Array) Value(row int) any {
	return a.At(row, 0, 0)
}

// Record returns every field of cell (row, col).
func (a *Array) Record(row, col int) []any {
	out := make([]any, len(a.columns))
	for f := range a.columns {
		out[f] = a.At(row, col, f)
	}
	return out
}

// SetRecord stores one value per field in cell (row, col).
func (a *Array) SetRecord(row, col int, values ...any) error {
	if len(values) != len(a.columns) {
		return fmt.Errorf("record has %d values, dtype %s has %d fields", len(values), a.dtype, len(a.columns))
	}
	for f, v := range values {
		if err := a.Set(row, col, f, v); err != nil {
			return fmt.Errorf("field %d: %w", f, err)
		}
	}
	return nil
}

// IsSentinel reports whether every field of cell (row, col) is a placeholder.
func (a *Array) IsSentinel(row, col int) bool {
	for _, c := range a.columns {
		if !c.IsSentinel(a.offset(row, col)) {
			return false
		}
	}
	return true
}

// resize changes the shape in place, keeping existing cells and filling new
// ones with sentinels. cols is ignored for 1-D arrays.
func (a *Array) resize(rows, cols int) {
	if a.ndim == 1 {
		cols = 1
	}
	if cols == a.cols {
		for _, c := range a.columns {
			c.grow((rows - a.rows) * cols)
			c.truncate(rows * cols)
		}
		a.rows = rows
		return
	}
	next := newArray(a.dtype, a.ndim, rows, cols)
	next.copyBlock(a, min(rows, a.rows), min(cols, a.cols))
	*a = *next
}

// copyBlock copies the top-left rows x cols block of src into a.
func (a *Array) copyBlock(src *Array, rows, cols int) {
	for f, c := range a.columns {
		for r := range rows {
			for k := range cols {
				c.copyCell(a.offset(r, k), src.columns[f], src.offset(r, k))
			}
		}
	}
}

// Take returns a new array holding the given rows in order.
func (a *Array) Take(rows []int) *Array {
	out := newArray(a.dtype, a.ndim, len(rows), a.cols)
	for f, c := range out.columns {
		for i, r := range rows {
			for k := range a.cols {
				c.copyCell(out.offset(i, k), a.columns[f], a.offset(r, k))
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	rows := make([]int, a.rows)
	for i := range rows {
		rows[i] = i
	}
	return a.Take(rows)
}

// Extend returns a copy with n sentinel rows appended.
func (a *Array) Extend(n int) *Array {
	out := a.Clone()
	out.resize(a.rows+n, a.cols)
	return out
}

// Pad returns a copy widened to cols columns; it returns a itself when it is
// already at least that wide or one-dimensional.
func (a *Array) Pad(cols int) *Array {
	if a.ndim == 1 || cols <= a.cols {
		return a
	}
	out := newArray(a.dtype, 2, a.rows, cols)
	out.copyBlock(a, a.rows, a.cols)
	return out
}

// Cast converts a primitive array to kind k.
func (a *Array) Cast(k Kind) (*Array, error) {
	if a.dtype.IsCompound() {
		return nil, fmt.Errorf("cannot cast compound dtype %s", a.dtype)
	}
	c, err := a.columns[0].Cast(k)
	if err != nil {
		return nil, err
	}
	return &Array{dtype: Scalar(k), ndim: a.ndim, rows: a.rows, cols: a.cols, columns: []*Column{c}}, nil
}

func (c *Column) truncate(n int) {
	switch c.kind {
	case Int64:
		c.ints = c.ints[:n]
	case Uint64:
		c.uints = c.uints[:n]
	case Float64:
		c.floats = c.floats[:n]
	case Bool:
		c.bools = c.bools[:n]
	case String:
		c.strs = c.strs[:n]
	}
}
