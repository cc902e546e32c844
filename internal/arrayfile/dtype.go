package arrayfile

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the element type of a column.
type Kind uint8

const (
	Int64 Kind = iota + 1
	Uint64
	Float64
	Bool
	String
	// Compound marks a Dtype made of named primitive fields.
	Compound
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Compound:
		return "compound"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind returns the primitive Kind for a name such as "float64".
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "int", "int64":
		return Int64, nil
	case "uint", "uint64":
		return Uint64, nil
	case "float", "float64":
		return Float64, nil
	case "bool":
		return Bool, nil
	case "str", "string":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", name)
	}
}

func (k Kind) primitive() bool {
	return k >= Int64 && k <= String
}

// Sentinel returns the placeholder stored in cells that were never written.
func Sentinel(k Kind) any {
	switch k {
	case Int64:
		return int64(-1)
	case Uint64:
		return uint64(0)
	case Float64:
		return math.NaN()
	case Bool:
		return false
	case String:
		return ""
	default:
		return nil
	}
}

// Field is one named member of a compound Dtype.
type Field struct {
	Name string
	Kind Kind
}

// Dtype describes the cells of an Array: either a single primitive Kind or
// an ordered list of primitive fields.
type Dtype struct {
	Kind   Kind
	Fields []Field
}

// Scalar returns a primitive Dtype.
func Scalar(k Kind) Dtype {
	return Dtype{Kind: k}
}

// NewCompound returns a compound Dtype with the given fields.
func NewCompound(fields ...Field) Dtype {
	return Dtype{Kind: Compound, Fields: append([]Field(nil), fields...)}
}

// IsCompound reports whether the dtype has named fields.
func (d Dtype) IsCompound() bool {
	return d.Kind == Compound
}

// NumFields returns the number of columns backing one cell.
func (d Dtype) NumFields() int {
	if d.IsCompound() {
		return len(d.Fields)
	}
	return 1
}

// FieldKind returns the kind of the i-th column.
func (d Dtype) FieldKind(i int) Kind {
	if d.IsCompound() {
		return d.Fields[i].Kind
	}
	return d.Kind
}

// FieldIndex returns the position of the named field, or -1.
func (d Dtype) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two dtypes have the same kinds and field names.
func (d Dtype) Equal(o Dtype) bool {
	if d.Kind != o.Kind || len(d.Fields) != len(o.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != o.Fields[i] {
			return false
		}
	}
	return true
}

func (d Dtype) validate() error {
	if !d.IsCompound() {
		if !d.Kind.primitive() {
			return fmt.Errorf("invalid dtype kind %s", d.Kind)
		}
		return nil
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("compound dtype without fields")
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Kind.primitive() {
			return fmt.Errorf("field %q: invalid kind %s", f.Name, f.Kind)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// String renders the dtype, e.g. "float64" or "{smiles:string, anchor:string}".
func (d Dtype) String() string {
	if !d.IsCompound() {
		return d.Kind.String()
	}
	parts := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		parts[i] = f.Name + ":" + f.Kind.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
