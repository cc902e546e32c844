package property

import (
	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
)

// Validate checks that every dataset in group is attached to the group's
// index scale on axis 0 and is exactly as long as that scale.
func Validate(group *arrayfile.Group) error {
	index, err := IndexOf(group)
	if err != nil {
		return err
	}
	for _, ds := range group.Datasets() {
		attached, ok := ds.Scale(0)
		switch {
		case !ok:
			return fault.Schema(ds.Name(), "missing dataset scale")
		case attached != index:
			return fault.Schema(ds.Name(), "invalid dataset scale: attached to %s, expected %s", attached.Name(), index.Name())
		case ds.Len() != index.Len():
			return fault.Schema(ds.Name(), "invalid dataset length: %d rows, index scale has %d", ds.Len(), index.Len())
		}
	}
	return nil
}
