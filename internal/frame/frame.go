// Package frame defines the in-memory batch exchanged with a database: one
// row per record, keyed by a composite label, with the record's structure,
// bookkeeping columns, properties and job settings side by side.
package frame

import (
	"fmt"
	"slices"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/settings"
)

// Unassigned is the Position of a row that has no storage row yet.
const Unassigned int64 = -1

// Property is one property column group. Without SubColumns Data is 1-D;
// otherwise Data is 2-D with one column per sub-column.
type Property struct {
	Name       string
	SubColumns []string
	Data       *arrayfile.Array
}

// Keys returns the batch column labels covered by p.
func (p *Property) Keys() []ir.ColumnKey {
	if len(p.SubColumns) == 0 {
		return []ir.ColumnKey{ir.Col(p.Name, "")}
	}
	out := make([]ir.ColumnKey, len(p.SubColumns))
	for i, sub := range p.SubColumns {
		out[i] = ir.Col(p.Name, sub)
	}
	return out
}

// Value returns the cell of row i for sub-column j.
func (p *Property) Value(i, j int) any {
	return p.Data.At(i, j, 0)
}

// Frame is a batch of records.
type Frame struct {
	Index      []ir.Key
	Molecules  []ir.Molecule
	Opt        []bool
	Position   []int64
	Properties []*Property
	// Settings holds job settings per settings field; nil trees are skipped.
	Settings map[string][]settings.Tree
}

// New returns a frame over index with every row unassigned and no
// molecules, properties or settings.
func New(index []ir.Key) *Frame {
	f := &Frame{
		Index:    slices.Clone(index),
		Opt:      make([]bool, len(index)),
		Position: make([]int64, len(index)),
	}
	for i := range f.Position {
		f.Position[i] = Unassigned
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Index) }

// Property returns the property called name.
func (f *Frame) Property(name string) (*Property, bool) {
	for _, p := range f.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// SettingsNames returns the settings fields in sorted order.
func (f *Frame) SettingsNames() []string {
	names := make([]string, 0, len(f.Settings))
	for name := range f.Settings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Find returns the row labelled key, or -1.
func (f *Frame) Find(key ir.Key) int {
	return slices.IndexFunc(f.Index, key.Equal)
}

// Validate checks that every column has one entry per row and that
// property data matches its sub-columns.
func (f *Frame) Validate() error {
	n := f.Len()
	if f.Molecules != nil && len(f.Molecules) != n {
		return fmt.Errorf("frame: %d molecules for %d rows", len(f.Molecules), n)
	}
	if len(f.Opt) != n {
		return fmt.Errorf("frame: %d opt values for %d rows", len(f.Opt), n)
	}
	if len(f.Position) != n {
		return fmt.Errorf("frame: %d positions for %d rows", len(f.Position), n)
	}
	seen := make(map[string]bool, n)
	for _, k := range f.Index {
		if seen[k.ID()] {
			return fmt.Errorf("frame: duplicate row %q", k)
		}
		seen[k.ID()] = true
	}
	names := make(map[string]bool, len(f.Properties))
	for _, p := range f.Properties {
		switch {
		case slices.Contains(PropertyBlacklist, p.Name):
			return fmt.Errorf("frame: %q is a reserved category", p.Name)
		case names[p.Name]:
			return fmt.Errorf("frame: duplicate property %q", p.Name)
		case p.Data == nil:
			return fmt.Errorf("frame: property %q has no data", p.Name)
		case p.Data.Rows() != n:
			return fmt.Errorf("frame: property %q has %d rows for %d", p.Name, p.Data.Rows(), n)
		case len(p.SubColumns) == 0 && p.Data.Ndim() != 1:
			return fmt.Errorf("frame: property %q without sub-columns must be 1-D", p.Name)
		case len(p.SubColumns) > 0 && (p.Data.Ndim() != 2 || p.Data.Cols() != len(p.SubColumns)):
			return fmt.Errorf("frame: property %q has shape %v for %d sub-columns", p.Name, p.Data.Shape(), len(p.SubColumns))
		case p.Data.Dtype().IsCompound():
			return fmt.Errorf("frame: property %q has compound dtype %s", p.Name, p.Data.Dtype())
		}
		names[p.Name] = true
	}
	for name, trees := range f.Settings {
		if len(trees) != n {
			return fmt.Errorf("frame: settings %q has %d entries for %d rows", name, len(trees), n)
		}
	}
	return nil
}

// PropertyBlacklist names the categories that are never stored as
// properties.
var PropertyBlacklist = []string{ir.CategoryMol, ir.CategoryOpt, ir.CategoryIndex, ir.CategorySettings}
