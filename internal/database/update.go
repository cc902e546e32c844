package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

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

// Status values accepted by UpdateOptions.
const (
	StatusNew       = ""
	StatusOptimized = "optimized"
)

// UpdateOptions configures FromFrame.
type UpdateOptions struct {
	// Overwrite rewrites the structures of existing rows and every
	// property cell of the batch, regardless of the mask.
	Overwrite bool

	// Status selects the mask column that classifies rows: the "opt"
	// column normally, the "hdf5 index" column for optimized structures.
	// Rows written with StatusOptimized are flagged as optimized.
	Status string

	// JobType selects the settings blacklist section.
	JobType string

	// Columns restricts the property dispatch to the named properties.
	// Nil selects every property of the batch.
	Columns []string
}

// UpdateResult summarizes a FromFrame call.
type UpdateResult struct {
	Token       string   `json:"token"`
	New         []int    `json:"new"`
	Overwritten []int    `json:"overwritten"`
	Datasets    []string `json:"datasets"`
}

// FromFrame writes f into the record group name.
//
// Rows are classified as new or existing by the mask's status column. New
// rows get fresh index positions, which are stored back into f.Position,
// and their structures are appended. With Overwrite the structures of
// existing rows are rewritten in place. Each property then receives the
// rows the mask marks for it (every row with Overwrite), and job settings
// are sanitized and stored likewise. A nil mask selects frame.DefaultMask.
//
// Classification and structure conversion errors abort the call before
// anything is written. Property and settings failures are collected and
// returned together; writes that already succeeded are kept. The array
// file is released on every path.
func (db *Database) FromFrame(ctx context.Context, f *frame.Frame, mask frame.Mask, name string, opts UpdateOptions) (res UpdateResult, err error) {
	if opts.Status != StatusNew && opts.Status != StatusOptimized {
		return res, fmt.Errorf("update %s: unknown status %q", name, opts.Status)
	}
	if err := f.Validate(); err != nil {
		return res, fmt.Errorf("update %s: %w", name, err)
	}
	if mask == nil {
		mask = frame.DefaultMask(f)
	}

	if err := arrayfile.WaitAvailable(ctx, db.Path, db.Probe); err != nil {
		return res, err
	}
	file, group, err := db.openGroup(name, arrayfile.ReadWrite)
	if err != nil {
		return res, err
	}
	written := false
	defer func() {
		if written {
			err = errors.Join(err, file.Close())
		} else {
			err = errors.Join(err, file.Discard())
		}
	}()

	u, err := db.plan(group, f, mask, opts)
	if err != nil {
		return res, err
	}
	u.token = db.tokens.Generate()
	slog.Info("updating records",
		"group", name,
		"token", u.token,
		"new", len(u.newRows),
		"existing", len(u.oldRows),
		"overwrite", opts.Overwrite,
		"status", opts.Status,
	)

	start, stop, err := scale.Allocate(u.index, len(u.newRows))
	if err != nil {
		return res, err
	}
	written = true

	if err := u.writeNew(start, stop); err != nil {
		return u.result(), err
	}
	if err := u.overwriteExisting(); err != nil {
		return u.result(), err
	}
	if err := u.align(); err != nil {
		return u.result(), err
	}

	errs := u.writeProperties()
	errs = append(errs, u.writeSettings()...)
	if len(errs) > 0 {
		slog.Warn("update finished with errors", "group", name, "token", u.token, "errors", len(errs))
	}
	return u.result(), errors.Join(errs...)
}

// update carries the state of one FromFrame call.
type update struct {
	db       *Database
	group    *arrayfile.Group
	index    *arrayfile.Dataset
	opt      *arrayfile.Dataset
	props    *arrayfile.Group
	settings *arrayfile.Group
	log      *arrayfile.Dataset

	frame *frame.Frame
	mask  frame.Mask
	opts  UpdateOptions
	token string

	newRows []int
	oldRows []int

	fresh     *pdb.Container
	stale     *pdb.Container
	staleRows []int

	res UpdateResult
}

// plan classifies the rows of f and converts their structures. Nothing is
// written.
func (db *Database) plan(group *arrayfile.Group, f *frame.Frame, mask frame.Mask, opts UpdateOptions) (*update, error) {
	u := &update{db: db, group: group, frame: f, mask: mask, opts: opts}
	var err error
	if u.index, err = scale.Lookup(group); err != nil {
		return nil, err
	}
	if u.opt, err = group.Dataset(OptName); err != nil {
		return nil, fault.Schema(group.Name(), "missing %q dataset", OptName)
	}
	if u.props, err = group.Group(property.GroupName); err != nil {
		return nil, fault.Schema(group.Name(), "missing %q group", property.GroupName)
	}
	if u.settings, err = group.Group(SettingsGroupName); err != nil {
		return nil, fault.Schema(group.Name(), "missing %q group", SettingsGroupName)
	}
	if u.log, err = changelog.Lookup(group); err != nil {
		return nil, err
	}

	if err := u.classify(); err != nil {
		return nil, err
	}
	if err := u.convert(); err != nil {
		return nil, err
	}
	return u, nil
}

// classify splits the frame into new and existing rows.
func (u *update) classify() error {
	status := ir.CategoryOpt
	if u.opts.Status == StatusOptimized {
		status = ir.CategoryIndex
	}

	f := u.frame
	taken := make(map[int64]ir.Key)
	for i, key := range f.Index {
		if u.mask.Row(status, i) {
			u.newRows = append(u.newRows, i)
			continue
		}
		pos := f.Position[i]
		if pos < 0 || pos >= int64(u.index.Len()) {
			return fault.Schema(u.index.Name(), "row %s is not new but has position %d (index has %d rows)", key, pos, u.index.Len())
		}
		if other, dup := taken[pos]; dup {
			return fault.Schema(u.index.Name(), "rows %s and %s share position %d", other, key, pos)
		}
		taken[pos] = key
		u.oldRows = append(u.oldRows, i)
	}
	if len(u.newRows) > 0 && f.Molecules == nil {
		return fmt.Errorf("update %s: %d new rows but the batch carries no molecules", u.group.Name(), len(u.newRows))
	}
	return nil
}

// convert builds the structure containers of both write passes.
func (u *update) convert() error {
	var err error
	if len(u.newRows) > 0 {
		if u.fresh, err = u.container(u.newRows); err != nil {
			return err
		}
	}
	if !u.opts.Overwrite || u.frame.Molecules == nil {
		return nil
	}

	var rows []int
	for _, i := range u.oldRows {
		if len(u.frame.Molecules[i].Atoms) > 0 {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	u.staleRows, _ = u.byPosition(rows)
	u.stale, err = u.container(u.staleRows)
	return err
}

func (u *update) container(rows []int) (*pdb.Container, error) {
	keys := make([]ir.Key, len(rows))
	mols := make([]ir.Molecule, len(rows))
	for k, i := range rows {
		keys[k] = u.frame.Index[i]
		mols[k] = u.frame.Molecules[i]
	}
	labels, err := scale.Encode(u.index.Dtype(), keys)
	if err != nil {
		return nil, err
	}
	return pdb.FromMolecules(mols, labels)
}

// byPosition sorts rows by stored position and returns them with their
// positions.
func (u *update) byPosition(rows []int) ([]int, []int) {
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b int) int {
		return cmp.Compare(u.frame.Position[a], u.frame.Position[b])
	})
	positions := make([]int, len(sorted))
	for k, i := range sorted {
		positions[k] = int(u.frame.Position[i])
	}
	return sorted, positions
}

// writeNew appends the structures of new rows at [start, stop) and extends
// the index scale with their keys.
func (u *update) writeNew(start, stop int) error {
	if u.fresh == nil {
		return nil
	}
	idx := arrayfile.Slice(start, stop)
	if err := u.fresh.ToStorage(u.group, idx, true); err != nil {
		return err
	}
	positions := make([]int, 0, stop-start)
	for k, i := range u.newRows {
		u.frame.Position[i] = int64(start + k)
		positions = append(positions, start+k)
	}
	if err := u.writeOpt(u.newRows, idx); err != nil {
		return err
	}
	u.res.New = positions
	return u.record(u.structureNames(u.fresh), positions, false)
}

// overwriteExisting rewrites the structures of existing rows in place. The
// index scale is left alone.
func (u *update) overwriteExisting() error {
	if u.stale == nil {
		return nil
	}
	_, positions := u.byPosition(u.staleRows)
	idx := arrayfile.Positions(positions...)
	if err := u.stale.ToStorage(u.group, idx, false); err != nil {
		return err
	}
	if err := u.writeOpt(u.staleRows, idx); err != nil {
		return err
	}
	u.res.Overwritten = positions
	return u.record(u.structureNames(u.stale), positions, true)
}

func (u *update) writeOpt(rows []int, idx arrayfile.Index) error {
	values := make([]bool, len(rows))
	for k, i := range rows {
		if u.opts.Status == StatusOptimized {
			u.frame.Opt[i] = true
		}
		values[k] = u.frame.Opt[i]
	}
	if err := property.Update(u.opt, arrayfile.FromBools(values...), idx); err != nil {
		return fmt.Errorf("write %s: %w", u.opt.Name(), err)
	}
	return nil
}

func (u *update) structureNames(c *pdb.Container) []string {
	var names []string
	for _, item := range c.Items() {
		names = append(names, u.group.Name()+"/"+item.Name)
	}
	return names
}

// align grows every dataset bound to the index to its length.
func (u *update) align() error {
	if err := property.ResizeToScale(u.props); err != nil {
		return err
	}
	if err := property.ResizeToScale(u.settings); err != nil {
		return err
	}
	if u.opt.Len() < u.index.Len() {
		if err := u.opt.Resize(u.index.Len()); err != nil {
			return fmt.Errorf("resize %s: %w", u.opt.Name(), err)
		}
	}
	return nil
}

// selected returns the frame rows a column receives, by position.
func (u *update) selected(marked func(i int) bool) ([]int, []int) {
	var rows []int
	for i := range u.frame.Len() {
		if u.opts.Overwrite || marked(i) {
			rows = append(rows, i)
		}
	}
	return u.byPosition(rows)
}

func (u *update) writeProperties() []error {
	var errs []error
	for _, p := range u.frame.Properties {
		if u.opts.Columns != nil && !slices.Contains(u.opts.Columns, p.Name) {
			continue
		}
		rows, positions := u.selected(func(i int) bool { return u.mask.Row(p.Name, i) })
		if len(rows) == 0 {
			continue
		}
		ds, err := u.writeProperty(p, rows, positions)
		if err != nil {
			errs = append(errs, fmt.Errorf("property %s: %w", p.Name, err))
			continue
		}
		if err := u.record([]string{ds.Name()}, positions, u.opts.Overwrite); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (u *update) writeProperty(p *frame.Property, rows, positions []int) (*arrayfile.Dataset, error) {
	data := p.Data.Take(rows)
	ds, created, err := property.GetOrCreate(u.props, p.Name, data.Dtype().Kind, p.SubColumns)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Debug("property created", "dataset", ds.Name(), "token", u.token)
	}

	idx := arrayfile.Positions(positions...)
	switch {
	case ds.Ndim() == 2 && len(p.SubColumns) == 0:
		return nil, fault.Schema(ds.Name(), "dataset has sub-columns %v, batch property has none", property.Columns(ds))
	case ds.Ndim() == 2:
		err = property.UpdateColumns(ds, p.SubColumns, data, idx)
	case data.Ndim() == 2 && data.Cols() != 1:
		return nil, fault.Schema(ds.Name(), "1-D dataset cannot take %d sub-columns", data.Cols())
	case data.Ndim() == 2:
		var col *arrayfile.Array
		if col, err = columnOf(data, 0); err == nil {
			err = property.Update(ds, col, idx)
		}
	default:
		err = property.Update(ds, data, idx)
	}
	if err != nil {
		return nil, err
	}
	u.res.Datasets = append(u.res.Datasets, ds.Name())
	return ds, nil
}

// columnOf returns column j of a 2-D array as a 1-D array.
func columnOf(a *arrayfile.Array, j int) (*arrayfile.Array, error) {
	out := arrayfile.NewArray(a.Dtype(), a.Rows())
	for i := range a.Rows() {
		if err := out.SetRecord(i, 0, a.Record(i, j)...); err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
	}
	return out, nil
}

func (u *update) writeSettings() []error {
	var errs []error
	for _, name := range u.frame.SettingsNames() {
		trees := u.frame.Settings[name]
		cells := u.mask[ir.Col(ir.CategorySettings, name)]
		rows, positions := u.selected(func(i int) bool { return i < len(cells) && cells[i] })

		var keep []int
		var values []string
		for k, i := range rows {
			if trees[i] == nil {
				continue
			}
			clean, err := settings.Sanitize(trees[i], u.opts.JobType)
			if err == nil {
				var data []byte
				if data, err = settings.Canonical(clean); err == nil {
					values = append(values, string(data))
					keep = append(keep, positions[k])
					continue
				}
			}
			errs = append(errs, fault.Conversion(u.frame.Index[i].String(), fmt.Errorf("settings %s: %w", name, err)))
		}
		if len(keep) == 0 {
			continue
		}

		ds, _, err := property.GetOrCreate(u.settings, name, arrayfile.String, nil)
		if err == nil {
			err = property.Update(ds, arrayfile.FromStrings(values...), arrayfile.Positions(keep...))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("settings %s: %w", name, err))
			continue
		}
		u.res.Datasets = append(u.res.Datasets, ds.Name())
		if err := u.record([]string{ds.Name()}, keep, u.opts.Overwrite); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// record appends one change-log entry for this call.
func (u *update) record(datasets []string, positions []int, overwrite bool) error {
	msg := fmt.Sprintf("datasets=[%s]; overwrite=%t", strings.Join(datasets, ", "), overwrite)
	return changelog.Append(u.log, changelog.Entry{
		Date:    u.db.now().UTC(),
		Token:   u.token,
		Index:   positions,
		Message: msg,
	})
}

func (u *update) result() UpdateResult {
	r := u.res
	r.Token = u.token
	return r
}
