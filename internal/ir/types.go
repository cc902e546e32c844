package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Reserved batch categories. They carry bookkeeping and structural data and
// are never stored as properties.
const (
	CategoryMol      = "mol"
	CategoryOpt      = "opt"
	CategoryIndex    = "hdf5 index"
	CategorySettings = "settings"
)

// Group names provisioned in every database file.
const (
	GroupLigand = "ligand"
	GroupQD     = "qd"
)

// Key is a composite row label, e.g. (ligand smiles, ligand anchor).
type Key []string

// String joins the key parts with a space.
func (k Key) String() string {
	return strings.Join(k, " ")
}

// ID renders the key with every part quoted, so distinct keys never share
// an ID. Use it for map keys; String is for display.
func (k Key) ID() string {
	return fmt.Sprintf("%q", []string(k))
}

// Equal reports whether both keys hold the same parts.
func (k Key) Equal(o Key) bool {
	return slices.Equal(k, o)
}

// Compare orders keys part by part.
func (k Key) Compare(o Key) int {
	return slices.Compare(k, o)
}

// ColumnKey is the two-level label of a batch column.
type ColumnKey struct {
	Category string `json:"category"`
	Field    string `json:"field"`
}

// Col is a shorthand for ColumnKey.
func Col(category, field string) ColumnKey {
	return ColumnKey{Category: category, Field: field}
}

// String renders the label as "category/field", or "category" when the
// field is empty.
func (c ColumnKey) String() string {
	if c.Field == "" {
		return c.Category
	}
	return c.Category + "/" + c.Field
}

// Atom is one row of a structural record's atom table.
type Atom struct {
	Hetero        bool    `json:"hetero" yaml:"hetero"`
	Serial        int64   `json:"serial" yaml:"serial"`
	Name          string  `json:"name" yaml:"name"`
	ResidueName   string  `json:"residue_name" yaml:"residue_name"`
	Chain         string  `json:"chain" yaml:"chain"`
	ResidueNumber int64   `json:"residue_number" yaml:"residue_number"`
	X             float64 `json:"x" yaml:"x"`
	Y             float64 `json:"y" yaml:"y"`
	Z             float64 `json:"z" yaml:"z"`
	Occupancy     float64 `json:"occupancy" yaml:"occupancy"`
	TempFactor    float64 `json:"temp_factor" yaml:"temp_factor"`
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Charge        int64   `json:"charge" yaml:"charge"`
}

// Bond connects two atoms by their 1-based position in the atom table.
type Bond struct {
	Atom1 int64 `json:"atom1" yaml:"atom1"`
	Atom2 int64 `json:"atom2" yaml:"atom2"`
	Order int64 `json:"order" yaml:"order"`
}

// Molecule is the in-memory form of one structural record.
type Molecule struct {
	Atoms []Atom `json:"atoms" yaml:"atoms"`
	Bonds []Bond `json:"bonds" yaml:"bonds"`
}
