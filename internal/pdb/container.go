// Package pdb stores structural records (atom and bond tables) as parallel
// arrays.
//
// A Container holds one row per record in each of its member arrays:
// atoms and bonds are 2-D, padded along axis 1 to the largest record of the
// batch, while atom_count and bond_count record how many of those cells are
// real. Row i of every member describes the record labelled by row i of the
// container's scale.
package pdb

import (
	"fmt"
	"strings"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
)

// Member dataset names.
const (
	AtomsName     = "atoms"
	BondsName     = "bonds"
	AtomCountName = "atom_count"
	BondCountName = "bond_count"
)

var (
	// AtomDtype is the cell type of the atoms table.
	AtomDtype = arrayfile.NewCompound(
		arrayfile.Field{Name: "hetero", Kind: arrayfile.Bool},
		arrayfile.Field{Name: "serial", Kind: arrayfile.Int64},
		arrayfile.Field{Name: "name", Kind: arrayfile.String},
		arrayfile.Field{Name: "residue name", Kind: arrayfile.String},
		arrayfile.Field{Name: "chain", Kind: arrayfile.String},
		arrayfile.Field{Name: "residue number", Kind: arrayfile.Int64},
		arrayfile.Field{Name: "x", Kind: arrayfile.Float64},
		arrayfile.Field{Name: "y", Kind: arrayfile.Float64},
		arrayfile.Field{Name: "z", Kind: arrayfile.Float64},
		arrayfile.Field{Name: "occupancy", Kind: arrayfile.Float64},
		arrayfile.Field{Name: "temp factor", Kind: arrayfile.Float64},
		arrayfile.Field{Name: "symbol", Kind: arrayfile.String},
		arrayfile.Field{Name: "charge", Kind: arrayfile.Int64},
	)

	// BondDtype is the cell type of the bonds table. Atoms are referenced by
	// their 1-based position in the record's atom table.
	BondDtype = arrayfile.NewCompound(
		arrayfile.Field{Name: "atom1", Kind: arrayfile.Int64},
		arrayfile.Field{Name: "atom2", Kind: arrayfile.Int64},
		arrayfile.Field{Name: "order", Kind: arrayfile.Int64},
	)

	countDtype = arrayfile.Scalar(arrayfile.Int64)
)

// Item is one named member array.
type Item struct {
	Name string
	Data *arrayfile.Array
}

// Source is anything that can be written member by member into a group.
type Source interface {
	Items() []Item
}

// Container is a batch of structural records.
type Container struct {
	atoms     *arrayfile.Array
	bonds     *arrayfile.Array
	atomCount *arrayfile.Array
	bondCount *arrayfile.Array
	scale     *arrayfile.Array
}

// Len returns the number of records.
func (c *Container) Len() int { return c.atomCount.Rows() }

// Scale returns the index-scale values of the batch.
func (c *Container) Scale() *arrayfile.Array { return c.scale }

// Items returns the member arrays in storage order. The scale is not a
// member.
func (c *Container) Items() []Item {
	return []Item{
		{Name: AtomsName, Data: c.atoms},
		{Name: BondsName, Data: c.bonds},
		{Name: AtomCountName, Data: c.atomCount},
		{Name: BondCountName, Data: c.bondCount},
	}
}

// FromMolecules serializes mols into a container whose row i is labelled by
// row i of scale. An invalid record fails the whole batch with a
// CONVERSION error naming that record.
func FromMolecules(mols []ir.Molecule, scale *arrayfile.Array) (*Container, error) {
	if scale.Rows() != len(mols) {
		return nil, fmt.Errorf("from molecules: %d molecules for %d scale rows", len(mols), scale.Rows())
	}

	maxAtoms, maxBonds := 0, 0
	for i, mol := range mols {
		if err := check(mol); err != nil {
			return nil, fault.Conversion(recordName(scale, i), err)
		}
		maxAtoms = max(maxAtoms, len(mol.Atoms))
		maxBonds = max(maxBonds, len(mol.Bonds))
	}

	c := &Container{
		atoms:     arrayfile.NewArray2D(AtomDtype, len(mols), maxAtoms),
		bonds:     arrayfile.NewArray2D(BondDtype, len(mols), maxBonds),
		atomCount: arrayfile.NewArray(countDtype, len(mols)),
		bondCount: arrayfile.NewArray(countDtype, len(mols)),
		scale:     scale,
	}
	for i, mol := range mols {
		for j, a := range mol.Atoms {
			err := c.atoms.SetRecord(i, j,
				a.Hetero, a.Serial, a.Name, a.ResidueName, a.Chain, a.ResidueNumber,
				a.X, a.Y, a.Z, a.Occupancy, a.TempFactor, a.Symbol, a.Charge,
			)
			if err != nil {
				return nil, fault.Conversion(recordName(scale, i), fmt.Errorf("atom %d: %w", j+1, err))
			}
		}
		for j, b := range mol.Bonds {
			if err := c.bonds.SetRecord(i, j, b.Atom1, b.Atom2, b.Order); err != nil {
				return nil, fault.Conversion(recordName(scale, i), fmt.Errorf("bond %d: %w", j+1, err))
			}
		}
		if err := c.atomCount.Set(i, 0, 0, len(mol.Atoms)); err != nil {
			return nil, err
		}
		if err := c.bondCount.Set(i, 0, 0, len(mol.Bonds)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// check rejects records that cannot be stored as a connected atom table.
func check(mol ir.Molecule) error {
	if len(mol.Atoms) == 0 {
		return fmt.Errorf("molecule has no atoms")
	}
	n := int64(len(mol.Atoms))
	for j, b := range mol.Bonds {
		switch {
		case b.Atom1 < 1 || b.Atom1 > n || b.Atom2 < 1 || b.Atom2 > n:
			return fmt.Errorf("bond %d references atoms (%d, %d) outside 1..%d", j+1, b.Atom1, b.Atom2, n)
		case b.Atom1 == b.Atom2:
			return fmt.Errorf("bond %d connects atom %d to itself", j+1, b.Atom1)
		case b.Order <= 0:
			return fmt.Errorf("bond %d has non-positive order %d", j+1, b.Order)
		}
	}
	return nil
}

func recordName(scale *arrayfile.Array, row int) string {
	parts := make([]string, 0, scale.Dtype().NumFields())
	for _, v := range scale.Record(row, 0) {
		parts = append(parts, arrayfile.FormatValue(v))
	}
	return strings.Join(parts, " ")
}

// ToMolecules deserializes every record. Rows that were never written
// yield an empty molecule.
func (c *Container) ToMolecules() ([]ir.Molecule, error) {
	out := make([]ir.Molecule, c.Len())
	for i := range out {
		nAtoms := c.atomCount.Value(i).(int64)
		nBonds := c.bondCount.Value(i).(int64)
		if nAtoms > int64(c.atoms.Cols()) || nBonds > int64(c.bonds.Cols()) {
			return nil, fault.Conversion(recordName(c.scale, i),
				fmt.Errorf("counts (%d atoms, %d bonds) exceed stored widths (%d, %d)", nAtoms, nBonds, c.atoms.Cols(), c.bonds.Cols()))
		}
		mol := ir.Molecule{}
		for j := range max(nAtoms, 0) {
			r := c.atoms.Record(i, int(j))
			mol.Atoms = append(mol.Atoms, ir.Atom{
				Hetero:        r[0].(bool),
				Serial:        r[1].(int64),
				Name:          r[2].(string),
				ResidueName:   r[3].(string),
				Chain:         r[4].(string),
				ResidueNumber: r[5].(int64),
				X:             r[6].(float64),
				Y:             r[7].(float64),
				Z:             r[8].(float64),
				Occupancy:     r[9].(float64),
				TempFactor:    r[10].(float64),
				Symbol:        r[11].(string),
				Charge:        r[12].(int64),
			})
		}
		for j := range max(nBonds, 0) {
			r := c.bonds.Record(i, int(j))
			mol.Bonds = append(mol.Bonds, ir.Bond{Atom1: r[0].(int64), Atom2: r[1].(int64), Order: r[2].(int64)})
		}
		out[i] = mol
	}
	return out, nil
}
