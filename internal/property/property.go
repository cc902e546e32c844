// Package property stores per-record computed values in datasets bound to a
// group's index scale.
//
// A property group remembers which index scale it follows. Every dataset in
// it is attached to that scale on axis 0 and has exactly one row per scale
// row. Multi-valued properties are 2-D; the names of their sub-columns are
// kept in the "columns" attribute, in order, and the width only grows.
//
// This package owns dataset creation: callers go through GetOrCreate and
// never create property datasets themselves.
package property

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/scale"
)

const (
	// GroupName is the conventional name of a category's property group.
	GroupName = "properties"

	// IndexAttr holds the absolute path of the group's index scale.
	IndexAttr = "index"

	// ColumnsAttr lists the sub-column names of a 2-D dataset.
	ColumnsAttr = "columns"
)

// CreateGroup creates a property group under parent that follows index.
func CreateGroup(parent *arrayfile.Group, name string, index *arrayfile.Dataset) (*arrayfile.Group, error) {
	if !index.IsScale() {
		return nil, fault.Schema(index.Name(), "property group %q needs a dimension scale", name)
	}
	g, err := parent.CreateGroup(name)
	if err != nil {
		return nil, fmt.Errorf("create property group: %w", err)
	}
	g.Attrs()[IndexAttr] = []string{index.Name()}
	return g, nil
}

// IndexOf returns the index scale a property group follows.
func IndexOf(group *arrayfile.Group) (*arrayfile.Dataset, error) {
	p := group.Attrs().Get(IndexAttr)
	if p == "" {
		return nil, fault.Schema(group.Name(), "property group has no %q attribute", IndexAttr)
	}
	index, err := group.Dataset(p)
	if err != nil {
		return nil, fault.Schema(group.Name(), "index scale %s: %v", p, err)
	}
	return index, nil
}

// CreateDataset creates a property dataset as long as the group's index.
// Zero or one sub-column gives a 1-D dataset; more give a 2-D dataset with
// one column per sub-column.
func CreateDataset(group *arrayfile.Group, name string, kind arrayfile.Kind, subColumns []string) (*arrayfile.Dataset, error) {
	index, err := IndexOf(group)
	if err != nil {
		return nil, err
	}
	if dup := firstDuplicate(subColumns); dup != "" {
		return nil, fmt.Errorf("create property %s: duplicate sub-column %q", name, dup)
	}

	shape := []int{index.Len()}
	if len(subColumns) > 1 {
		shape = append(shape, len(subColumns))
	}
	ds, err := group.CreateDataset(name, arrayfile.Scalar(kind), shape...)
	if err != nil {
		return nil, fmt.Errorf("create property %s: %w", name, err)
	}
	if err := ds.SetLabel(0, scale.Name); err != nil {
		return nil, err
	}
	if err := ds.AttachScale(0, index); err != nil {
		return nil, fault.Schema(ds.Name(), "attach index scale: %v", err)
	}
	if len(shape) == 2 {
		ds.Attrs()[ColumnsAttr] = slices.Clone(subColumns)
		if err := ds.SetLabel(1, ColumnsAttr); err != nil {
			return nil, err
		}
	}

	slog.Debug("property dataset created", "dataset", ds.Name(), "kind", kind, "shape", shape)
	return ds, nil
}

// GetOrCreate returns the named property dataset, creating it on first use.
// The boolean reports whether the dataset was created.
func GetOrCreate(group *arrayfile.Group, name string, kind arrayfile.Kind, subColumns []string) (*arrayfile.Dataset, bool, error) {
	if group.Has(name) {
		ds, err := group.Dataset(name)
		if err != nil {
			return nil, false, fault.Schema(group.Name(), "%q exists but is not a dataset", name)
		}
		return ds, false, nil
	}
	ds, err := CreateDataset(group, name, kind, subColumns)
	return ds, ds != nil, err
}

// Columns returns the sub-column names of ds, or nil for 1-D datasets.
func Columns(ds *arrayfile.Dataset) []string {
	return slices.Clone(ds.Attrs()[ColumnsAttr])
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
