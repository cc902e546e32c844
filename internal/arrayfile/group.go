package arrayfile

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

// ErrNotFound is wrapped by lookups of missing groups or datasets.
var ErrNotFound = errors.New("not found")

// ErrExists is wrapped when creating a member whose name is taken.
var ErrExists = errors.New("already exists")

// Group is a named container of datasets and sub-groups.
type Group struct {
	name     string
	parent   *Group
	groups   map[string]*Group
	datasets map[string]*Dataset
	attrs    Attrs
}

// NewRoot returns an empty, detached root group.
func NewRoot() *Group {
	return newGroup("", nil)
}

func newGroup(name string, parent *Group) *Group {
	return &Group{
		name:     name,
		parent:   parent,
		groups:   make(map[string]*Group),
		datasets: make(map[string]*Dataset),
		attrs:    make(Attrs),
	}
}

// Name returns the absolute path of the group ("/" for the root).
func (g *Group) Name() string {
	if g.parent == nil {
		return "/"
	}
	return path.Join(g.parent.Name(), g.name)
}

// Base returns the group name within its parent.
func (g *Group) Base() string { return g.name }

// Parent returns the containing group, or nil for the root.
func (g *Group) Parent() *Group { return g.parent }

// Root returns the root group of the tree.
func (g *Group) Root() *Group {
	for g.parent != nil {
		g = g.parent
	}
	return g
}

// Attrs returns the mutable attribute map.
func (g *Group) Attrs() Attrs { return g.attrs }

// Has reports whether a direct member called name exists.
func (g *Group) Has(name string) bool {
	_, isGroup := g.groups[name]
	_, isDataset := g.datasets[name]
	return isGroup || isDataset
}

// walk resolves all but the last element of p and returns the parent group
// plus the final name.
func (g *Group) walk(p string) (*Group, string, error) {
	cur := g
	if strings.HasPrefix(p, "/") {
		cur = g.Root()
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.groups[part]
		if !ok {
			return nil, "", fmt.Errorf("%w: group %s", ErrNotFound, path.Join(cur.Name(), part))
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}

// Group returns the sub-group at p (relative, or absolute from the root).
func (g *Group) Group(p string) (*Group, error) {
	parent, name, err := g.walk(p)
	if err != nil {
		return nil, err
	}
	child, ok := parent.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, path.Join(parent.Name(), name))
	}
	return child, nil
}

// Dataset returns the dataset at p (relative, or absolute from the root).
func (g *Group) Dataset(p string) (*Dataset, error) {
	parent, name, err := g.walk(p)
	if err != nil {
		return nil, err
	}
	ds, ok := parent.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s", ErrNotFound, path.Join(parent.Name(), name))
	}
	return ds, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("invalid member name %q", name)
	}
	return nil
}

// CreateGroup adds a direct sub-group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if g.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrExists, path.Join(g.Name(), name))
	}
	child := newGroup(name, g)
	g.groups[name] = child
	return child, nil
}

// RequireGroup returns the direct sub-group called name, creating it if needed.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if child, ok := g.groups[name]; ok {
		return child, nil
	}
	return g.CreateGroup(name)
}

// CreateDataset adds a direct dataset of the given shape (one or two axes),
// filled with the dtype sentinel.
func (g *Group) CreateDataset(name string, dt Dtype, shape ...int) (*Dataset, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := dt.validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	if g.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrExists, path.Join(g.Name(), name))
	}
	var data *Array
	switch len(shape) {
	case 1:
		data = NewArray(dt, shape[0])
	case 2:
		data = NewArray2D(dt, shape[0], shape[1])
	default:
		return nil, fmt.Errorf("dataset %s: unsupported rank %d", name, len(shape))
	}
	for _, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("dataset %s: negative shape %v", name, shape)
		}
	}
	ds := &Dataset{
		name:   name,
		parent: g,
		data:   data,
		attrs:  make(Attrs),
		dims:   make([]Dim, len(shape)),
	}
	g.datasets[name] = ds
	return ds, nil
}

// Delete removes a direct member.
func (g *Group) Delete(name string) error {
	if _, ok := g.groups[name]; ok {
		delete(g.groups, name)
		return nil
	}
	if _, ok := g.datasets[name]; ok {
		delete(g.datasets, name)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, path.Join(g.Name(), name))
}

// Datasets returns the direct datasets sorted by name.
func (g *Group) Datasets() []*Dataset {
	out := make([]*Dataset, 0, len(g.datasets))
	for _, ds := range g.datasets {
		out = append(out, ds)
	}
	slices.SortFunc(out, func(a, b *Dataset) int { return strings.Compare(a.name, b.name) })
	return out
}

// Groups returns the direct sub-groups sorted by name.
func (g *Group) Groups() []*Group {
	out := make([]*Group, 0, len(g.groups))
	for _, child := range g.groups {
		out = append(out, child)
	}
	slices.SortFunc(out, func(a, b *Group) int { return strings.Compare(a.name, b.name) })
	return out
}
