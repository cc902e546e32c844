package arrayfile

import (
	"fmt"
	"math"
	"strconv"
)

// Column is a flat, typed slice of cells. Only the slice matching Kind is used.
type Column struct {
	kind   Kind
	ints   []int64
	uints  []uint64
	floats []float64
	bools  []bool
	strs   []string
}

// NewColumn returns a column of n sentinel cells.
func NewColumn(k Kind, n int) *Column {
	c := &Column{kind: k}
	c.grow(n)
	return c
}

// Kind returns the element kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of cells.
func (c *Column) Len() int {
	switch c.kind {
	case Int64:
		return len(c.ints)
	case Uint64:
		return len(c.uints)
	case Float64:
		return len(c.floats)
	case Bool:
		return len(c.bools)
	case String:
		return len(c.strs)
	}
	return 0
}

// Int64s returns the backing slice of an Int64 column.
func (c *Column) Int64s() []int64 { return c.ints }

// Uint64s returns the backing slice of a Uint64 column.
func (c *Column) Uint64s() []uint64 { return c.uints }

// Float64s returns the backing slice of a Float64 column.
func (c *Column) Float64s() []float64 { return c.floats }

// Bools returns the backing slice of a Bool column.
func (c *Column) Bools() []bool { return c.bools }

// Strings returns the backing slice of a String column.
func (c *Column) Strings() []string { return c.strs }

// Get returns cell i as int64, uint64, float64, bool or string.
func (c *Column) Get(i int) any {
	switch c.kind {
	case Int64:
		return c.ints[i]
	case Uint64:
		return c.uints[i]
	case Float64:
		return c.floats[i]
	case Bool:
		return c.bools[i]
	case String:
		return c.strs[i]
	}
	return nil
}

// Set stores v at cell i, converting compatible Go numeric types.
// A nil v stores the sentinel.
func (c *Column) Set(i int, v any) error {
	if v == nil {
		c.setSentinel(i)
		return nil
	}
	switch c.kind {
	case Int64:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		c.ints[i] = n
	case Uint64:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("negative value %d for uint64 cell", n)
		}
		c.uints[i] = uint64(n)
	case Float64:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		c.floats[i] = f
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot store %T in bool cell", v)
		}
		c.bools[i] = b
	case String:
		switch s := v.(type) {
		case string:
			c.strs[i] = s
		case []byte:
			c.strs[i] = string(s)
		default:
			return fmt.Errorf("cannot store %T in string cell", v)
		}
	}
	return nil
}

func (c *Column) setSentinel(i int) {
	switch c.kind {
	case Int64:
		c.ints[i] = -1
	case Uint64:
		c.uints[i] = 0
	case Float64:
		c.floats[i] = math.NaN()
	case Bool:
		c.bools[i] = false
	case String:
		c.strs[i] = ""
	}
}

// IsSentinel reports whether cell i holds the placeholder value.
func (c *Column) IsSentinel(i int) bool {
	switch c.kind {
	case Int64:
		return c.ints[i] == -1
	case Uint64:
		return c.uints[i] == 0
	case Float64:
		return math.IsNaN(c.floats[i])
	case Bool:
		return !c.bools[i]
	case String:
		return c.strs[i] == ""
	}
	return false
}

// grow appends n sentinel cells.
func (c *Column) grow(n int) {
	if n <= 0 {
		return
	}
	switch c.kind {
	case Int64:
		for range n {
			c.ints = append(c.ints, -1)
		}
	case Uint64:
		c.uints = append(c.uints, make([]uint64, n)...)
	case Float64:
		for range n {
			c.floats = append(c.floats, math.NaN())
		}
	case Bool:
		c.bools = append(c.bools, make([]bool, n)...)
	case String:
		c.strs = append(c.strs, make([]string, n)...)
	}
}

// copyCell copies src[si] into c[di]; both columns share a kind.
func (c *Column) copyCell(di int, src *Column, si int) {
	switch c.kind {
	case Int64:
		c.ints[di] = src.ints[si]
	case Uint64:
		c.uints[di] = src.uints[si]
	case Float64:
		c.floats[di] = src.floats[si]
	case Bool:
		c.bools[di] = src.bools[si]
	case String:
		c.strs[di] = src.strs[si]
	}
}

// Cast converts every cell to kind k by value, and any value converts to
// String through its textual form. Only float NaN, and empty text cast to a
// number, become the sentinel of k.
func (c *Column) Cast(k Kind) (*Column, error) {
	out := NewColumn(k, c.Len())
	if k == c.kind {
		for i := range c.Len() {
			out.copyCell(i, c, i)
		}
		return out, nil
	}
	for i := range c.Len() {
		if c.missing(i, k) {
			continue
		}
		var v any
		if k == String {
			v = FormatValue(c.Get(i))
		} else {
			v = c.Get(i)
		}
		if s, ok := v.(string); ok && k != String {
			parsed, err := ParseValue(k, s)
			if err != nil {
				return nil, fmt.Errorf("cast cell %d: %w", i, err)
			}
			v = parsed
		}
		if b, ok := v.(bool); ok && k != Bool {
			v = 0
			if b {
				v = 1
			}
		}
		if err := out.Set(i, v); err != nil {
			return nil, fmt.Errorf("cast cell %d: %w", i, err)
		}
	}
	return out, nil
}

// missing reports whether cell i has no value to carry into kind k.
func (c *Column) missing(i int, k Kind) bool {
	switch c.kind {
	case Float64:
		return math.IsNaN(c.floats[i])
	case String:
		return k != String && c.strs[i] == ""
	}
	return false
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// ParseValue parses text produced by FormatValue into a value storable in
// a cell of kind k.
func ParseValue(k Kind, s string) (any, error) {
	switch k {
	case Int64:
		return strconv.ParseInt(s, 10, 64)
	case Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case Float64:
		return strconv.ParseFloat(s, 64)
	case Bool:
		return strconv.ParseBool(s)
	}
	return s, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("non-integral value %v for integer cell", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("cannot store %T in integer cell", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("cannot store %T in float cell", v)
}
