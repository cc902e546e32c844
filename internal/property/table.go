package property

import (
	"fmt"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/scale"
)

// Table is a property dataset read back with its row labels.
type Table struct {
	Index   []ir.Key
	Columns []string
	Data    *arrayfile.Array
}

// Value returns the cell at (row, col).
func (t *Table) Value(row, col int) any {
	return t.Data.At(row, col, 0)
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return len(t.Index) }

// ToTable reads ds back, labelling rows with the keys stored in its index
// scale. Columns are the sub-column names, or the dataset name for 1-D
// datasets. A non-nil cast converts every value to that kind.
func ToTable(ds *arrayfile.Dataset, cast *arrayfile.Kind) (*Table, error) {
	index, ok := ds.Scale(0)
	if !ok {
		return nil, fault.Schema(ds.Name(), "missing dataset scale")
	}
	keys, err := scale.Keys(index, arrayfile.Slice(0, ds.Len()))
	if err != nil {
		return nil, err
	}
	if len(keys) != ds.Len() {
		return nil, fault.Schema(ds.Name(), "invalid dataset length: %d rows, index scale has %d", ds.Len(), index.Len())
	}

	data, err := ds.Read(arrayfile.All())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ds.Name(), err)
	}
	if cast != nil {
		if data, err = data.Cast(*cast); err != nil {
			return nil, fmt.Errorf("cast %s: %w", ds.Name(), err)
		}
	}

	columns := Columns(ds)
	if ds.Ndim() == 1 {
		columns = []string{ds.Base()}
	}
	return &Table{Index: keys, Columns: columns, Data: data}, nil
}
