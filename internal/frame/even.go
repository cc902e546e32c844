package frame

import (
	"slices"

	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/settings"
)

// EvenIndex makes the rows of b a subset of the rows of a. It returns a
// itself when nothing is missing; otherwise a copy of a extended with one
// sentinel row per key of b that a lacks, in b's order. Repeated keys of b
// are added once.
func EvenIndex(a, b *Frame) *Frame {
	var missing []ir.Key
	added := make(map[string]bool)
	for _, key := range b.Index {
		if a.Find(key) < 0 && !added[key.ID()] {
			added[key.ID()] = true
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return a
	}

	n := len(missing)
	out := &Frame{
		Index:    append(slices.Clone(a.Index), missing...),
		Opt:      append(slices.Clone(a.Opt), make([]bool, n)...),
		Position: slices.Clone(a.Position),
	}
	for range n {
		out.Position = append(out.Position, Unassigned)
	}
	if a.Molecules != nil {
		out.Molecules = append(slices.Clone(a.Molecules), make([]ir.Molecule, n)...)
	}
	for _, p := range a.Properties {
		out.Properties = append(out.Properties, &Property{
			Name:       p.Name,
			SubColumns: slices.Clone(p.SubColumns),
			Data:       p.Data.Extend(n),
		})
	}
	if a.Settings != nil {
		out.Settings = make(map[string][]settings.Tree, len(a.Settings))
		for name, trees := range a.Settings {
			out.Settings[name] = append(slices.Clone(trees), make([]settings.Tree, n)...)
		}
	}
	return out
}
