package pdb

import (
	"fmt"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/scale"
)

// CreateGroup provisions a structural-record group under parent: empty
// member datasets plus an index scale of dtype scaleDtype.
func CreateGroup(parent *arrayfile.Group, name string, scaleDtype arrayfile.Dtype) (*arrayfile.Group, error) {
	g, err := parent.CreateGroup(name)
	if err != nil {
		return nil, fmt.Errorf("create record group: %w", err)
	}
	members := []struct {
		name  string
		dt    arrayfile.Dtype
		shape []int
	}{
		{AtomsName, AtomDtype, []int{0, 0}},
		{BondsName, BondDtype, []int{0, 0}},
		{AtomCountName, countDtype, []int{0}},
		{BondCountName, countDtype, []int{0}},
	}
	for _, m := range members {
		if _, err := g.CreateDataset(m.name, m.dt, m.shape...); err != nil {
			return nil, fmt.Errorf("create record group %s: %w", name, err)
		}
	}
	labels := map[string]string{AtomsName: "atoms", BondsName: "bonds"}
	if _, err := scale.CreateIndexScale(g, scaleDtype, 0, labels); err != nil {
		return nil, err
	}
	return g, nil
}

// FromStorage reads the records at idx back from group.
func FromStorage(group *arrayfile.Group, idx arrayfile.Index) (*Container, error) {
	read := func(name string) (*arrayfile.Array, error) {
		ds, err := group.Dataset(name)
		if err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		a, err := ds.Read(idx)
		if err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		return a, nil
	}

	c := &Container{}
	var err error
	if c.atoms, err = read(AtomsName); err != nil {
		return nil, err
	}
	if c.bonds, err = read(BondsName); err != nil {
		return nil, err
	}
	if c.atomCount, err = read(AtomCountName); err != nil {
		return nil, err
	}
	if c.bondCount, err = read(BondCountName); err != nil {
		return nil, err
	}
	if c.scale, err = read(scale.Name); err != nil {
		return nil, err
	}
	return c, nil
}

// ToStorage writes the container into group at idx, growing every member
// dataset as needed. With updateScale the container's scale values are
// written into the group's index as well.
func (c *Container) ToStorage(group *arrayfile.Group, idx arrayfile.Index, updateScale bool) error {
	for _, item := range c.Items() {
		ds, err := group.Dataset(item.Name)
		if err != nil {
			return fmt.Errorf("write records: %w", err)
		}
		var cols []int
		if item.Data.Ndim() == 2 {
			cols = append(cols, item.Data.Cols())
		}
		if err := ds.Resize(idx.Bound(ds.Len()), cols...); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
	}
	if err := UpdateValues(group, c, idx); err != nil {
		return err
	}
	if !updateScale {
		return nil
	}

	index, err := scale.Lookup(group)
	if err != nil {
		return err
	}
	if err := index.Resize(idx.Bound(index.Len())); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := index.Write(idx, c.scale); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// UpdateValues writes every array of src into the rows of its dataset
// selected by idx. 2-D arrays are padded to the dataset width so that a
// shorter record replaces a longer one entirely.
func UpdateValues(group *arrayfile.Group, src Source, idx arrayfile.Index) error {
	for _, item := range src.Items() {
		ds, err := group.Dataset(item.Name)
		if err != nil {
			return fmt.Errorf("update values: %w", err)
		}
		data := item.Data
		if data.Ndim() == 2 {
			data = data.Pad(ds.Shape()[1])
		}
		if err := ds.Write(idx, data); err != nil {
			return fmt.Errorf("update values: %w", err)
		}
	}
	return nil
}
