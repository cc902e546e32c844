// Package batchfile reads update batches from YAML.
//
// A batch names its target group, declares the property columns it carries
// and lists one entry per record:
//
//	group: ligand
//	overwrite: false
//	properties:
//	  - name: E_solv
//	    kind: float64
//	    sub_columns: [Acetone, Acetonitrile]
//	records:
//	  - key: ["C[O-]", "O2"]
//	    molecule:
//	      atoms: [{serial: 1, name: C1, symbol: C, x: 0, y: 0, z: 0}]
//	    properties:
//	      E_solv: [-56.6, -57.9]
//
// Property cells a record leaves out are not authoritative: they are
// excluded from the batch mask and keep whatever the database holds.
package batchfile

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/frame"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/settings"
)

// Batch is a decoded batch file.
type Batch struct {
	// Group is the target record group, "ligand" or "qd".
	Group string `yaml:"group"`

	// Status is "" or "optimized".
	Status string `yaml:"status,omitempty"`

	Overwrite bool `yaml:"overwrite,omitempty"`

	// JobType selects the settings blacklist section.
	JobType string `yaml:"job_type,omitempty"`

	Properties []PropertyDecl `yaml:"properties,omitempty"`

	Records []Record `yaml:"records"`
}

// PropertyDecl declares one property column group.
type PropertyDecl struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	SubColumns []string `yaml:"sub_columns,omitempty"`
}

// Record is one batch row.
type Record struct {
	Key      []string       `yaml:"key"`
	Position *int64         `yaml:"position,omitempty"`
	Opt      bool           `yaml:"opt,omitempty"`
	Molecule *ir.Molecule   `yaml:"molecule,omitempty"`
	Props    map[string]any `yaml:"properties,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load reads and parses a batch file. Unknown fields are rejected.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a batch document.
func Parse(data []byte) (*Batch, error) {
	var b Batch
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&b); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return &b, nil
}

func validate(b *Batch) error {
	if b.Group != ir.GroupLigand && b.Group != ir.GroupQD {
		return fmt.Errorf("group must be %q or %q, got %q", ir.GroupLigand, ir.GroupQD, b.Group)
	}
	if b.Status != "" && b.Status != "optimized" {
		return fmt.Errorf("status must be empty or \"optimized\", got %q", b.Status)
	}
	if len(b.Records) == 0 {
		return fmt.Errorf("at least one record is required")
	}

	declared := make(map[string]bool, len(b.Properties))
	for i, p := range b.Properties {
		if p.Name == "" {
			return fmt.Errorf("property %d: name is required", i)
		}
		if slices.Contains(frame.PropertyBlacklist, p.Name) {
			return fmt.Errorf("property %q: reserved name", p.Name)
		}
		if declared[p.Name] {
			return fmt.Errorf("property %q: declared twice", p.Name)
		}
		if _, err := arrayfile.ParseKind(p.Kind); err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
		declared[p.Name] = true
	}

	width := len(b.Records[0].Key)
	for i, r := range b.Records {
		if len(r.Key) == 0 {
			return fmt.Errorf("record %d: key is required", i)
		}
		if len(r.Key) != width {
			return fmt.Errorf("record %d: key has %d parts, expected %d", i, len(r.Key), width)
		}
		for name := range r.Props {
			if !declared[name] {
				return fmt.Errorf("record %d: undeclared property %q", i, name)
			}
		}
	}
	return nil
}

// Frame converts the batch into a frame and the mask of authoritative
// cells. Status columns follow the default mask; property and settings
// cells are marked where a record provides them.
func (b *Batch) Frame() (*frame.Frame, frame.Mask, error) {
	keys := make([]ir.Key, len(b.Records))
	for i, r := range b.Records {
		keys[i] = ir.Key(slices.Clone(r.Key))
	}
	f := frame.New(keys)
	n := f.Len()

	hasMolecules := false
	for i, r := range b.Records {
		if r.Position != nil {
			f.Position[i] = *r.Position
		}
		f.Opt[i] = r.Opt
		hasMolecules = hasMolecules || r.Molecule != nil
	}
	if hasMolecules {
		f.Molecules = make([]ir.Molecule, n)
		for i, r := range b.Records {
			if r.Molecule != nil {
				f.Molecules[i] = *r.Molecule
			}
		}
	}

	mask := frame.DefaultMask(f)
	for _, decl := range b.Properties {
		p, err := b.property(decl, mask)
		if err != nil {
			return nil, nil, err
		}
		f.Properties = append(f.Properties, p)
	}

	for i, r := range b.Records {
		for name, raw := range r.Settings {
			tree, ok := raw.(settings.Tree)
			if !ok {
				return nil, nil, fmt.Errorf("record %s: settings %q must be a mapping", keys[i], name)
			}
			if f.Settings == nil {
				f.Settings = make(map[string][]settings.Tree)
			}
			if f.Settings[name] == nil {
				f.Settings[name] = make([]settings.Tree, n)
			}
			f.Settings[name][i] = tree
			mask.Set(ir.Col(ir.CategorySettings, name), n, i, true)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	return f, mask, nil
}

func (b *Batch) property(decl PropertyDecl, mask frame.Mask) (*frame.Property, error) {
	kind, err := arrayfile.ParseKind(decl.Kind)
	if err != nil {
		return nil, err
	}
	n := len(b.Records)
	dt := arrayfile.Scalar(kind)
	p := &frame.Property{Name: decl.Name, SubColumns: slices.Clone(decl.SubColumns)}
	if len(decl.SubColumns) == 0 {
		p.Data = arrayfile.NewArray(dt, n)
	} else {
		p.Data = arrayfile.NewArray2D(dt, n, len(decl.SubColumns))
	}
	keys := p.Keys()
	for _, key := range keys {
		mask[key] = make([]bool, n)
	}

	for i, r := range b.Records {
		raw, ok := r.Props[decl.Name]
		if !ok {
			continue
		}
		var cells []any
		if len(decl.SubColumns) == 0 {
			cells = []any{raw}
		} else {
			list, isList := raw.([]any)
			if !isList || len(list) != len(decl.SubColumns) {
				return nil, fmt.Errorf("record %s: property %q needs a list of %d values", ir.Key(r.Key), decl.Name, len(decl.SubColumns))
			}
			cells = list
		}
		for j, v := range cells {
			if v == nil {
				continue
			}
			if err := p.Data.Set(i, j, 0, v); err != nil {
				return nil, fmt.Errorf("record %s: property %q: %w", ir.Key(r.Key), decl.Name, err)
			}
			mask[keys[j]][i] = true
		}
	}
	return p, nil
}
