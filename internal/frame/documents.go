package frame

import (
	"fmt"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/ir"
)

// Document is one flattened batch row.
type Document = map[string]any

// Documents flattens every row of f into a document. Key parts are stored
// under keyNames; a property without sub-columns maps to its value, one with
// sub-columns to a nested object. Sentinel cells become null, except Bool
// properties where false is kept.
func Documents(f *Frame, keyNames []string) ([]Document, error) {
	out := make([]Document, f.Len())
	for i, key := range f.Index {
		if len(key) != len(keyNames) {
			return nil, fmt.Errorf("documents: row %q has %d parts for %d key names", key, len(key), len(keyNames))
		}
		doc := Document{
			ir.CategoryOpt:   f.Opt[i],
			ir.CategoryIndex: f.Position[i],
		}
		for _, p := range f.Properties {
			if len(p.SubColumns) == 0 {
				doc[p.Name] = cell(p, i, 0)
				continue
			}
			nested := make(map[string]any, len(p.SubColumns))
			for j, sub := range p.SubColumns {
				nested[sub] = cell(p, i, j)
			}
			doc[p.Name] = nested
		}
		if len(f.Settings) > 0 {
			nested := make(map[string]any, len(f.Settings))
			for name, trees := range f.Settings {
				if trees[i] != nil {
					nested[name] = trees[i]
				}
			}
			if len(nested) > 0 {
				doc[ir.CategorySettings] = nested
			}
		}
		for j, name := range keyNames {
			doc[name] = key[j]
		}
		out[i] = doc
	}
	return out, nil
}

func cell(p *Property, i, j int) any {
	if p.Data.Column(0).Kind() != arrayfile.Bool && p.Data.IsSentinel(i, j) {
		return nil
	}
	return p.Value(i, j)
}
