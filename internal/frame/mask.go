package frame

import (
	"github.com/roach88/molstore/internal/ir"
)

// Mask marks, per batch column, which cells are authoritative. Cells that
// are not marked are left alone by an update.
type Mask map[ir.ColumnKey][]bool

// Row reports whether any column of category is marked for row i.
func (m Mask) Row(category string, i int) bool {
	for key, cells := range m {
		if key.Category == category && i < len(cells) && cells[i] {
			return true
		}
	}
	return false
}

// Rows returns the rows for which Row(category, i) holds, ascending.
func (m Mask) Rows(category string, n int) []int {
	var out []int
	for i := range n {
		if m.Row(category, i) {
			out = append(out, i)
		}
	}
	return out
}

// Set marks or clears a single cell, growing the column to n rows.
func (m Mask) Set(key ir.ColumnKey, n, i int, v bool) {
	cells := m[key]
	if len(cells) < n {
		cells = append(cells, make([]bool, n-len(cells))...)
	}
	cells[i] = v
	m[key] = cells
}

// DefaultMask is used when a caller supplies no mask. The status columns
// mark rows without a storage position; every property and settings cell
// is authoritative.
func DefaultMask(f *Frame) Mask {
	n := f.Len()
	unassigned := make([]bool, n)
	for i, pos := range f.Position {
		unassigned[i] = pos < 0
	}
	m := Mask{
		ir.Col(ir.CategoryOpt, ""):   unassigned,
		ir.Col(ir.CategoryIndex, ""): append([]bool(nil), unassigned...),
	}
	for _, p := range f.Properties {
		for _, key := range p.Keys() {
			m[key] = allTrue(n)
		}
	}
	for name := range f.Settings {
		m[ir.Col(ir.CategorySettings, name)] = allTrue(n)
	}
	return m
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
