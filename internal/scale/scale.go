// Package scale manages the row index shared by every dataset of a group.
//
// The index is a growable 1-D dataset marked as a dimension scale. Axis 0 of
// every sibling dataset is attached to it, so row i of any dataset in the
// group describes the record labelled by index row i. Rows are only ever
// appended: Allocate hands out [len, len+n) and nothing is reused.
package scale

import (
	"fmt"
	"log/slog"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
)

// Name is the dataset name and scale name of every index.
const Name = "index"

// Scale dtypes of the provisioned groups.
var (
	LigandDtype = arrayfile.NewCompound(
		arrayfile.Field{Name: "ligand smiles", Kind: arrayfile.String},
		arrayfile.Field{Name: "ligand anchor", Kind: arrayfile.String},
	)
	QDDtype = arrayfile.NewCompound(
		arrayfile.Field{Name: "core", Kind: arrayfile.String},
		arrayfile.Field{Name: "core anchor", Kind: arrayfile.String},
		arrayfile.Field{Name: "ligand smiles", Kind: arrayfile.String},
		arrayfile.Field{Name: "ligand anchor", Kind: arrayfile.String},
	)
)

// CreateIndexScale creates the index dataset of group with length rows,
// marks it as a scale and attaches axis 0 of every sibling dataset to it.
// dimLabels maps dataset names onto the label of their second axis (for
// example "atoms" -> "atoms"); those datasets must be 2-D.
func CreateIndexScale(group *arrayfile.Group, dt arrayfile.Dtype, length int, dimLabels map[string]string) (*arrayfile.Dataset, error) {
	siblings := group.Datasets()
	for _, ds := range siblings {
		if ds.Len() != length {
			return nil, fault.Schema(ds.Name(), "axis 0 has %d rows, index scale has %d", ds.Len(), length)
		}
	}
	for name := range dimLabels {
		ds, err := group.Dataset(name)
		if err != nil {
			return nil, fault.Schema(name, "cannot label axis 1: %v", err)
		}
		if ds.Ndim() != 2 {
			return nil, fault.Schema(ds.Name(), "cannot label axis 1 of a %d-D dataset", ds.Ndim())
		}
	}

	index, err := group.CreateDataset(Name, dt, length)
	if err != nil {
		return nil, fmt.Errorf("create index scale: %w", err)
	}
	index.MakeScale(Name)

	for _, ds := range siblings {
		if err := ds.SetLabel(0, Name); err != nil {
			return nil, err
		}
		if err := ds.AttachScale(0, index); err != nil {
			return nil, fault.Schema(ds.Name(), "attach index scale: %v", err)
		}
		if label, ok := dimLabels[ds.Base()]; ok {
			if err := ds.SetLabel(1, label); err != nil {
				return nil, err
			}
		}
	}

	slog.Debug("index scale created", "group", group.Name(), "dtype", dt.String(), "attached", len(siblings))
	return index, nil
}

// Lookup returns the index scale of group.
func Lookup(group *arrayfile.Group) (*arrayfile.Dataset, error) {
	index, err := group.Dataset(Name)
	if err != nil {
		return nil, fault.Schema(group.Name(), "missing index scale")
	}
	if !index.IsScale() {
		return nil, fault.Schema(index.Name(), "dataset is not a dimension scale")
	}
	return index, nil
}

// Allocate grows the scale by n rows and returns the reserved range
// [start, stop). New rows hold the dtype sentinel until written.
func Allocate(index *arrayfile.Dataset, n int) (start, stop int, err error) {
	if n < 0 {
		return 0, 0, fmt.Errorf("allocate %d rows: count must not be negative", n)
	}
	start = index.Len()
	stop = start + n
	if err := index.Resize(stop); err != nil {
		return 0, 0, fmt.Errorf("allocate %d rows: %w", n, err)
	}
	slog.Debug("index rows allocated", "scale", index.Name(), "start", start, "stop", stop)
	return start, stop, nil
}

// Keys decodes the selected scale rows into composite row labels.
func Keys(index *arrayfile.Dataset, rows arrayfile.Index) ([]ir.Key, error) {
	data, err := index.Read(rows)
	if err != nil {
		return nil, fmt.Errorf("read index scale: %w", err)
	}
	keys := make([]ir.Key, data.Rows())
	for i := range keys {
		record := data.Record(i, 0)
		key := make(ir.Key, len(record))
		for f, v := range record {
			key[f] = arrayfile.FormatValue(v)
		}
		keys[i] = key
	}
	return keys, nil
}

// Encode converts row labels into a 1-D array of the scale dtype, ready to
// be written into the scale.
func Encode(dt arrayfile.Dtype, keys []ir.Key) (*arrayfile.Array, error) {
	out := arrayfile.NewArray(dt, len(keys))
	for i, key := range keys {
		if len(key) != dt.NumFields() {
			return nil, fault.Conversion(key.String(), fmt.Errorf("key has %d parts, index dtype %s has %d fields", len(key), dt, dt.NumFields()))
		}
		values := make([]any, len(key))
		for f, part := range key {
			v, err := arrayfile.ParseValue(dt.FieldKind(f), part)
			if err != nil {
				return nil, fault.Conversion(key.String(), fmt.Errorf("field %d: %w", f, err))
			}
			values[f] = v
		}
		if err := out.SetRecord(i, 0, values...); err != nil {
			return nil, fault.Conversion(key.String(), err)
		}
	}
	return out, nil
}

// Find returns the scale row of every key, or -1 for keys not present.
func Find(index *arrayfile.Dataset, keys []ir.Key) ([]int, error) {
	stored, err := Keys(index, arrayfile.All())
	if err != nil {
		return nil, err
	}
	rows := make(map[string]int, len(stored))
	for i, k := range stored {
		if _, seen := rows[k.ID()]; !seen {
			rows[k.ID()] = i
		}
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		pos, ok := rows[k.ID()]
		if !ok {
			pos = -1
		}
		out[i] = pos
	}
	return out, nil
}
