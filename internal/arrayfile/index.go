package arrayfile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// End marks an open slice stop.
const End = math.MaxInt

// ErrInvalidIndex is wrapped by every row-selection error.
var ErrInvalidIndex = errors.New("invalid index")

type indexKind uint8

const (
	indexAll indexKind = iota
	indexAt
	indexPositions
	indexSlice
)

// Index selects rows along axis 0: a single row, a strictly ascending list
// of rows, a half-open slice, or everything.
type Index struct {
	kind        indexKind
	pos         []int
	start, stop int
}

// All selects every row.
func All() Index { return Index{kind: indexAll} }

// At selects row i; negative i counts from the end.
func At(i int) Index { return Index{kind: indexAt, start: i} }

// Positions selects the given rows, which must be strictly ascending.
func Positions(rows ...int) Index {
	return Index{kind: indexPositions, pos: append([]int(nil), rows...)}
}

// Slice selects rows [start, stop). A negative start counts from the end;
// stop may be End.
func Slice(start, stop int) Index {
	return Index{kind: indexSlice, start: start, stop: stop}
}

// Resolve returns the selected row numbers for an axis of the given length.
func (x Index) Resolve(length int) ([]int, error) {
	switch x.kind {
	case indexAll:
		return span(0, length), nil

	case indexAt:
		i := x.start
		if i < 0 {
			i += length
		}
		if i < 0 || i >= length {
			return nil, fmt.Errorf("%w: row %d out of range for length %d", ErrInvalidIndex, x.start, length)
		}
		return []int{i}, nil

	case indexPositions:
		for i, p := range x.pos {
			if p < 0 || p >= length {
				return nil, fmt.Errorf("%w: row %d out of range for length %d", ErrInvalidIndex, p, length)
			}
			if i > 0 && p <= x.pos[i-1] {
				return nil, fmt.Errorf("%w: positions must be strictly ascending (%d after %d)", ErrInvalidIndex, p, x.pos[i-1])
			}
		}
		return append([]int(nil), x.pos...), nil

	case indexSlice:
		start, stop := x.start, x.stop
		if start < 0 {
			start = max(start+length, 0)
		}
		if stop == End {
			stop = length
		} else if stop < 0 {
			stop += length
		}
		stop = min(stop, length)
		if start >= stop {
			return nil, nil
		}
		return span(start, stop), nil
	}
	return nil, fmt.Errorf("%w: unknown index kind", ErrInvalidIndex)
}

// Bound returns the axis length needed for Resolve to cover every explicitly
// addressed row. Relative selections return length unchanged.
func (x Index) Bound(length int) int {
	need := length
	switch x.kind {
	case indexAt:
		if x.start >= 0 {
			need = x.start + 1
		}
	case indexPositions:
		for _, p := range x.pos {
			need = max(need, p+1)
		}
	case indexSlice:
		if x.stop != End && x.stop >= 0 {
			need = x.stop
		}
	}
	return max(need, length)
}

// String renders the index in python slice notation.
func (x Index) String() string {
	switch x.kind {
	case indexAt:
		return strconv.Itoa(x.start)
	case indexPositions:
		parts := make([]string, len(x.pos))
		for i, p := range x.pos {
			parts[i] = strconv.Itoa(p)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case indexSlice:
		stop := ""
		if x.stop != End {
			stop = strconv.Itoa(x.stop)
		}
		return strconv.Itoa(x.start) + ":" + stop
	}
	return ":"
}

func span(start, stop int) []int {
	out := make([]int, 0, max(stop-start, 0))
	for i := start; i < stop; i++ {
		out = append(out, i)
	}
	return out
}
