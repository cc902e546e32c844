// Package database ties the storage layers together into one handle: an
// array file holding the "ligand" and "qd" record groups, and an optional
// document mirror.
//
// Every record group has the same layout:
//
//	/<group>/index        dimension scale, one row per record
//	/<group>/atoms ...    structural record arrays
//	/<group>/opt          whether the record is an optimized geometry
//	/<group>/properties/  one dataset per computed property
//	/<group>/settings/    canonical job settings, one dataset per job
//	/<group>/logger       change log
//
// A Database value is a handle, not owned data: it is compared by the
// resources it points at and the file is only opened for the duration of
// one call.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/changelog"
	"github.com/roach88/molstore/internal/compression"
	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/mirror"
	"github.com/roach88/molstore/internal/pdb"
	"github.com/roach88/molstore/internal/property"
	"github.com/roach88/molstore/internal/scale"
)

const (
	// FileName is the array file created inside the database directory.
	FileName = "structures.molstore"

	// OptName is the per-record optimized flag dataset.
	OptName = "opt"

	// SettingsGroupName holds the job settings datasets of a group.
	SettingsGroupName = "settings"
)

// Groups lists the record groups of every database with their index dtype.
var Groups = []struct {
	Name  string
	Dtype arrayfile.Dtype
}{
	{ir.GroupLigand, scale.LigandDtype},
	{ir.GroupQD, scale.QDDtype},
}

// TokenGenerator produces the token stamped on every change-log entry of
// one update call.
type TokenGenerator interface {
	Generate() string
}

// Options configures New.
type Options struct {
	// Compression of a newly created array file.
	Compression compression.Type

	// Probe paces the availability check made before every write. The zero
	// value selects arrayfile.DefaultProbe.
	Probe arrayfile.Probe

	// Mirror is the DSN of the document mirror; empty disables it.
	Mirror string

	// Now and Tokens default to the wall clock and UUIDv7 tokens.
	Now    func() time.Time
	Tokens TokenGenerator
}

// Database is a handle to a database directory.
type Database struct {
	Dir         string
	Path        string
	Compression compression.Type
	Probe       arrayfile.Probe
	Mirror      string

	mirror *mirror.Mirror
	now    func() time.Time
	tokens TokenGenerator
}

// New opens the database in dir, creating the directory, the array file and
// any missing record group. With a mirror DSN the mirror is opened too.
// Like every write, provisioning first waits for the file to be available.
func New(ctx context.Context, dir string, opts Options) (*Database, error) {
	if opts.Probe == (arrayfile.Probe{}) {
		opts.Probe = arrayfile.DefaultProbe
	}
	if err := opts.Probe.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve database directory: %w", err)
	}

	db := &Database{
		Dir:         abs,
		Path:        filepath.Join(abs, FileName),
		Compression: opts.Compression,
		Probe:       opts.Probe,
		Mirror:      opts.Mirror,
		now:         opts.Now,
		tokens:      opts.Tokens,
	}
	db.setDefaults()

	if err := arrayfile.WaitAvailable(ctx, db.Path, db.Probe); err != nil {
		return nil, err
	}
	f, err := arrayfile.Open(db.Path, arrayfile.Create, arrayfile.Options{Compression: db.Compression})
	if err != nil {
		return nil, err
	}
	db.Compression = f.Compression()
	created, err := provision(f.Root())
	if err != nil {
		return nil, errors.Join(err, f.Discard())
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if len(created) > 0 {
		slog.Info("database provisioned", "path", db.Path, "groups", created, "compression", db.Compression)
	}

	if err := db.Reconnect(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) setDefaults() {
	if db.now == nil {
		db.now = time.Now
	}
	if db.tokens == nil {
		db.tokens = UUIDv7Generator{}
	}
}

// provision creates every record group missing from root and returns their
// names.
func provision(root *arrayfile.Group) ([]string, error) {
	var created []string
	for _, layout := range Groups {
		if root.Has(layout.Name) {
			continue
		}
		g, err := pdb.CreateGroup(root, layout.Name, layout.Dtype)
		if err != nil {
			return nil, err
		}
		index, err := scale.Lookup(g)
		if err != nil {
			return nil, err
		}
		opt, err := g.CreateDataset(OptName, arrayfile.Scalar(arrayfile.Bool), 0)
		if err != nil {
			return nil, fmt.Errorf("provision %s: %w", layout.Name, err)
		}
		if err := opt.SetLabel(0, scale.Name); err != nil {
			return nil, err
		}
		if err := opt.AttachScale(0, index); err != nil {
			return nil, fmt.Errorf("provision %s: %w", layout.Name, err)
		}
		if _, err := property.CreateGroup(g, property.GroupName, index); err != nil {
			return nil, err
		}
		if _, err := property.CreateGroup(g, SettingsGroupName, index); err != nil {
			return nil, err
		}
		if _, err := changelog.Create(g); err != nil {
			return nil, err
		}
		created = append(created, layout.Name)
	}
	return created, nil
}

// Close releases the mirror connection, if any.
func (db *Database) Close() error {
	if db.mirror == nil {
		return nil
	}
	err := db.mirror.Close()
	db.mirror = nil
	return err
}

// Reconnect opens the mirror named by the handle if it is not open yet. It
// is called by New and must be called after decoding a handle from JSON.
func (db *Database) Reconnect() error {
	db.setDefaults()
	if db.Mirror == "" || db.mirror != nil {
		return nil
	}
	m, err := mirror.Open(db.Mirror)
	if err != nil {
		return err
	}
	db.mirror = m
	return nil
}

// Equal reports whether both handles point at the same resources.
func (db *Database) Equal(o *Database) bool {
	if db == nil || o == nil {
		return db == o
	}
	return db.Dir == o.Dir && db.Path == o.Path && db.Mirror == o.Mirror
}

func (db *Database) String() string {
	if db.Mirror == "" {
		return fmt.Sprintf("Database(%s)", db.Path)
	}
	return fmt.Sprintf("Database(%s, mirror=%s)", db.Path, db.Mirror)
}

type handleJSON struct {
	Dir         string `json:"dir"`
	Path        string `json:"path"`
	Compression string `json:"compression"`
	Mirror      string `json:"mirror,omitempty"`
	Probe       struct {
		Timeout     string `json:"timeout"`
		MaxAttempts int    `json:"max_attempts"`
	} `json:"probe"`
}

// MarshalJSON encodes the resource identifiers of the handle.
func (db *Database) MarshalJSON() ([]byte, error) {
	var h handleJSON
	h.Dir = db.Dir
	h.Path = db.Path
	h.Compression = db.Compression.String()
	h.Mirror = db.Mirror
	h.Probe.Timeout = db.Probe.Timeout.String()
	h.Probe.MaxAttempts = db.Probe.MaxAttempts
	return json.Marshal(h)
}

// UnmarshalJSON decodes a handle. The mirror is not opened; call Reconnect.
func (db *Database) UnmarshalJSON(data []byte) error {
	var h handleJSON
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decode database handle: %w", err)
	}
	ct, err := compression.Parse(h.Compression)
	if err != nil {
		return fmt.Errorf("decode database handle: %w", err)
	}
	timeout, err := time.ParseDuration(h.Probe.Timeout)
	if err != nil {
		return fmt.Errorf("decode database handle: probe timeout: %w", err)
	}
	*db = Database{
		Dir:         h.Dir,
		Path:        h.Path,
		Compression: ct,
		Probe:       arrayfile.Probe{Timeout: timeout, MaxAttempts: h.Probe.MaxAttempts},
		Mirror:      h.Mirror,
	}
	return nil
}

// openGroup opens the array file and returns it with the named group.
func (db *Database) openGroup(name string, mode arrayfile.Mode) (*arrayfile.File, *arrayfile.Group, error) {
	f, err := arrayfile.Open(db.Path, mode, arrayfile.Options{Compression: db.Compression})
	if err != nil {
		return nil, nil, err
	}
	g, err := f.Root().Group(name)
	if err != nil {
		_ = f.Discard()
		return nil, nil, fault.Schema(name, "unknown record group: %v", err)
	}
	return f, g, nil
}
