package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/changelog"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/frame"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/pdb"
	"github.com/roach88/molstore/internal/property"
	"github.com/roach88/molstore/internal/scale"
	"github.com/roach88/molstore/internal/settings"
)

// ReadOptions selects what ToFrame reads.
type ReadOptions struct {
	// Keys selects records by key; keys not stored are left out unless
	// KeepMissing is set. Nil selects every record.
	Keys []ir.Key

	// KeepMissing appends every requested key that is not stored as an
	// unassigned row holding sentinels, after the stored rows.
	KeepMissing bool

	// Properties selects property datasets by name. Nil selects all.
	Properties []string

	// Molecules also reads the structural records.
	Molecules bool
}

// ToFrame reads records of group name back into a frame ordered by
// position. Positions are filled in, so the frame can be fed back to
// FromFrame as existing rows.
func (db *Database) ToFrame(ctx context.Context, name string, opts ReadOptions) (*frame.Frame, error) {
	if err := arrayfile.WaitAvailable(ctx, db.Path, db.Probe); err != nil {
		return nil, err
	}
	file, group, err := db.openGroup(name, arrayfile.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer file.Discard()

	index, err := scale.Lookup(group)
	if err != nil {
		return nil, err
	}
	rows, err := selectRows(index, opts.Keys)
	if err != nil {
		return nil, err
	}
	keys, err := scale.Keys(index, arrayfile.Positions(rows...))
	if err != nil {
		return nil, err
	}

	f := frame.New(keys)
	for i, row := range rows {
		f.Position[i] = int64(row)
	}
	if len(rows) == 0 {
		return keepMissing(f, opts), nil
	}

	if ds, err := group.Dataset(OptName); err == nil {
		data, err := readAligned(ds, index.Len())
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			f.Opt[i], _ = data.At(row, 0, 0).(bool)
		}
	}

	if opts.Molecules {
		c, err := pdb.FromStorage(group, arrayfile.Positions(rows...))
		if err != nil {
			return nil, err
		}
		if f.Molecules, err = c.ToMolecules(); err != nil {
			return nil, err
		}
	}

	props, err := group.Group(property.GroupName)
	if err != nil {
		return nil, fault.Schema(group.Name(), "missing %q group", property.GroupName)
	}
	for _, ds := range props.Datasets() {
		if opts.Properties != nil && !slices.Contains(opts.Properties, ds.Base()) {
			continue
		}
		data, err := readAligned(ds, index.Len())
		if err != nil {
			return nil, err
		}
		p := &frame.Property{Name: ds.Base(), Data: data.Take(rows)}
		if ds.Ndim() == 2 {
			p.SubColumns = property.Columns(ds)
		}
		f.Properties = append(f.Properties, p)
	}

	if err := readSettings(group, f, rows, index.Len()); err != nil {
		return nil, err
	}
	return keepMissing(f, opts), nil
}

func keepMissing(f *frame.Frame, opts ReadOptions) *frame.Frame {
	if !opts.KeepMissing || opts.Keys == nil {
		return f
	}
	return frame.EvenIndex(f, frame.New(opts.Keys))
}

// selectRows returns the ascending scale rows holding keys, or every row.
func selectRows(index *arrayfile.Dataset, keys []ir.Key) ([]int, error) {
	if keys == nil {
		rows := make([]int, index.Len())
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}
	found, err := scale.Find(index, keys)
	if err != nil {
		return nil, err
	}
	rows := make([]int, 0, len(found))
	for _, row := range found {
		if row >= 0 {
			rows = append(rows, row)
		}
	}
	slices.Sort(rows)
	return slices.Compact(rows), nil
}

// readAligned reads ds padded with sentinels to n rows.
func readAligned(ds *arrayfile.Dataset, n int) (*arrayfile.Array, error) {
	data, err := ds.Read(arrayfile.All())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ds.Name(), err)
	}
	if data.Rows() < n {
		data = data.Extend(n - data.Rows())
	}
	return data, nil
}

func readSettings(group *arrayfile.Group, f *frame.Frame, rows []int, n int) error {
	sg, err := group.Group(SettingsGroupName)
	if err != nil {
		return fault.Schema(group.Name(), "missing %q group", SettingsGroupName)
	}
	for _, ds := range sg.Datasets() {
		data, err := readAligned(ds, n)
		if err != nil {
			return err
		}
		trees := make([]settings.Tree, len(rows))
		for i, row := range rows {
			s, _ := data.At(row, 0, 0).(string)
			if trees[i], err = settings.Parse([]byte(s)); err != nil {
				return fmt.Errorf("%s row %d: %w", ds.Name(), row, err)
			}
		}
		if f.Settings == nil {
			f.Settings = make(map[string][]settings.Tree)
		}
		f.Settings[ds.Base()] = trees
	}
	return nil
}

// Log returns the change log of group name, oldest entry first.
func (db *Database) Log(ctx context.Context, name string) ([]changelog.Entry, error) {
	if err := arrayfile.WaitAvailable(ctx, db.Path, db.Probe); err != nil {
		return nil, err
	}
	file, group, err := db.openGroup(name, arrayfile.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer file.Discard()

	log, err := changelog.Lookup(group)
	if err != nil {
		return nil, err
	}
	return changelog.Dump(log)
}

// Validate checks the layout of group name: the index scale, the change log,
// and that every property and settings dataset is attached to the index and
// as long as it. All problems are reported together.
func (db *Database) Validate(ctx context.Context, name string) error {
	if err := arrayfile.WaitAvailable(ctx, db.Path, db.Probe); err != nil {
		return err
	}
	file, group, err := db.openGroup(name, arrayfile.ReadOnly)
	if err != nil {
		return err
	}
	defer file.Discard()

	var errs []error
	index, err := scale.Lookup(group)
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := changelog.Lookup(group); err != nil {
		errs = append(errs, err)
	}
	if opt, err := group.Dataset(OptName); err != nil {
		errs = append(errs, fault.Schema(group.Name(), "missing %q dataset", OptName))
	} else if index != nil && opt.Len() != index.Len() {
		errs = append(errs, fault.Schema(opt.Name(), "invalid dataset length: %d rows, index scale has %d", opt.Len(), index.Len()))
	}
	for _, sub := range []string{property.GroupName, SettingsGroupName} {
		g, err := group.Group(sub)
		if err != nil {
			errs = append(errs, fault.Schema(group.Name(), "missing %q group", sub))
			continue
		}
		if err := property.Validate(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
