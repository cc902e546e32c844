package arrayfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/roach88/molstore/internal/compression"
)

// File layout:
//
//	magic[8] | version u8 | compression u8 | payload length u64le | payload | xxh3-64 u64le
//
// The payload is the compressed varint encoding of the group tree.
const (
	formatVersion = 1
	headerSize    = 8 + 1 + 1 + 8
	trailerSize   = 8
)

var magic = [8]byte{'M', 'O', 'L', 'S', 'T', 'O', 'R', 'E'}

// ErrCorrupt is wrapped by every decoding failure.
var ErrCorrupt = errors.New("corrupt array file")

// Marshal serializes a group tree into the on-disk file format.
func Marshal(root *Group, ct compression.Type) ([]byte, error) {
	var e encoder
	e.group(root)

	payload, err := compression.Compress(ct, e.buf)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	out := make([]byte, 0, headerSize+len(payload)+trailerSize)
	out = append(out, magic[:]...)
	out = append(out, formatVersion, byte(ct))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint64(out, xxh3.Hash(payload))
	return out, nil
}

// Unmarshal parses the on-disk file format and returns the root group and
// the compression type recorded in the header.
func Unmarshal(data []byte) (*Group, compression.Type, error) {
	if len(data) < headerSize+trailerSize {
		return nil, 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[:8], magic[:]) {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if data[8] != formatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, data[8])
	}
	ct := compression.Type(data[9])
	n := binary.LittleEndian.Uint64(data[10:headerSize])
	if n != uint64(len(data)-headerSize-trailerSize) {
		return nil, 0, fmt.Errorf("%w: payload length %d does not match file size", ErrCorrupt, n)
	}
	payload := data[headerSize : headerSize+int(n)]
	want := binary.LittleEndian.Uint64(data[headerSize+int(n):])
	if got := xxh3.Hash(payload); got != want {
		return nil, 0, fmt.Errorf("%w: checksum mismatch (got %016x, want %016x)", ErrCorrupt, got, want)
	}

	raw, err := compression.Decompress(ct, payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
	}

	d := decoder{buf: raw}
	root := newGroup("", nil)
	d.group(root)
	if d.err == nil && d.off != len(d.buf) {
		d.err = fmt.Errorf("%d trailing bytes", len(d.buf)-d.off)
	}
	if d.err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, d.err)
	}
	return root, ct, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }
func (e *encoder) varint(v int64)   { e.buf = binary.AppendVarint(e.buf, v) }
func (e *encoder) byte1(b byte)     { e.buf = append(e.buf, b) }

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) attrs(a Attrs) {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	e.uvarint(uint64(len(keys)))
	for _, k := range keys {
		e.str(k)
		e.uvarint(uint64(len(a[k])))
		for _, v := range a[k] {
			e.str(v)
		}
	}
}

func (e *encoder) group(g *Group) {
	e.attrs(g.attrs)
	groups := g.Groups()
	e.uvarint(uint64(len(groups)))
	for _, child := range groups {
		e.str(child.name)
		e.group(child)
	}
	datasets := g.Datasets()
	e.uvarint(uint64(len(datasets)))
	for _, ds := range datasets {
		e.str(ds.name)
		e.dataset(ds)
	}
}

func (e *encoder) dtype(dt Dtype) {
	e.byte1(byte(dt.Kind))
	if dt.IsCompound() {
		e.uvarint(uint64(len(dt.Fields)))
		for _, f := range dt.Fields {
			e.str(f.Name)
			e.byte1(byte(f.Kind))
		}
	}
}

func (e *encoder) dataset(ds *Dataset) {
	a := ds.data
	e.dtype(a.dtype)
	e.byte1(byte(a.ndim))
	e.uvarint(uint64(a.rows))
	if a.ndim == 2 {
		e.uvarint(uint64(a.cols))
	}
	e.str(ds.scaleName)
	e.attrs(ds.attrs)
	for _, dim := range ds.dims {
		e.str(dim.Label)
		e.str(dim.Scale)
	}
	for _, c := range a.columns {
		e.column(c)
	}
}

func (e *encoder) column(c *Column) {
	switch c.kind {
	case Int64:
		for _, v := range c.ints {
			e.varint(v)
		}
	case Uint64:
		for _, v := range c.uints {
			e.uvarint(v)
		}
	case Float64:
		for _, v := range c.floats {
			e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
		}
	case Bool:
		for _, v := range c.bools {
			if v {
				e.byte1(1)
			} else {
				e.byte1(0)
			}
		}
	case String:
		for _, v := range c.strs {
			e.str(v)
		}
	}
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format+" at offset %d", append(args, d.off)...)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail("bad uvarint")
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.off:])
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) byte1() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.buf) {
		d.fail("unexpected end of payload")
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

// count reads a length and rejects values that cannot fit in the remaining
// payload given at least minSize bytes per element.
func (d *decoder) count(minSize int) int {
	n := d.uvarint()
	if d.err != nil {
		return 0
	}
	if n > uint64(len(d.buf)-d.off)/uint64(max(minSize, 1)) {
		d.fail("length %d exceeds payload", n)
		return 0
	}
	return int(n)
}

// size reads an axis length.
func (d *decoder) size() int {
	n := d.uvarint()
	if n > math.MaxInt32 {
		d.fail("axis length %d too large", n)
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	n := d.count(1)
	if d.err != nil {
		return ""
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s
}

func (d *decoder) attrs() Attrs {
	a := make(Attrs)
	n := d.count(1)
	for range n {
		k := d.str()
		m := d.count(1)
		vals := make([]string, 0, m)
		for range m {
			vals = append(vals, d.str())
		}
		if d.err != nil {
			return a
		}
		a[k] = vals
	}
	return a
}

func (d *decoder) group(g *Group) {
	g.attrs = d.attrs()
	for range d.count(1) {
		name := d.str()
		if d.err != nil {
			return
		}
		child := newGroup(name, g)
		d.group(child)
		g.groups[name] = child
	}
	for range d.count(1) {
		name := d.str()
		if d.err != nil {
			return
		}
		ds := &Dataset{name: name, parent: g}
		d.dataset(ds)
		if d.err != nil {
			return
		}
		g.datasets[name] = ds
	}
}

func (d *decoder) dtype() Dtype {
	dt := Dtype{Kind: Kind(d.byte1())}
	if dt.IsCompound() {
		n := d.count(2)
		for range n {
			name := d.str()
			dt.Fields = append(dt.Fields, Field{Name: name, Kind: Kind(d.byte1())})
		}
	}
	if d.err == nil {
		if err := dt.validate(); err != nil {
			d.fail("%v", err)
		}
	}
	return dt
}

func (d *decoder) dataset(ds *Dataset) {
	dt := d.dtype()
	ndim := int(d.byte1())
	if d.err == nil && ndim != 1 && ndim != 2 {
		d.fail("unsupported rank %d", ndim)
	}
	rows := d.size()
	cols := 1
	if ndim == 2 {
		cols = d.size()
	}
	ds.scaleName = d.str()
	ds.attrs = d.attrs()
	ds.dims = make([]Dim, max(ndim, 0))
	for i := range ds.dims {
		ds.dims[i] = Dim{Label: d.str(), Scale: d.str()}
	}
	if d.err != nil {
		return
	}
	cells := rows * cols
	a := &Array{dtype: dt, ndim: ndim, rows: rows, cols: cols, columns: make([]*Column, dt.NumFields())}
	for f := range a.columns {
		a.columns[f] = d.column(dt.FieldKind(f), cells)
	}
	ds.data = a
}

func (d *decoder) column(k Kind, n int) *Column {
	c := &Column{kind: k}
	if d.err != nil {
		return NewColumn(k, 0)
	}
	if n > len(d.buf)-d.off {
		d.fail("column of %d cells exceeds payload", n)
		return NewColumn(k, 0)
	}
	switch k {
	case Int64:
		c.ints = make([]int64, n)
		for i := range c.ints {
			c.ints[i] = d.varint()
		}
	case Uint64:
		c.uints = make([]uint64, n)
		for i := range c.uints {
			c.uints[i] = d.uvarint()
		}
	case Float64:
		if n*8 > len(d.buf)-d.off {
			d.fail("float column of %d cells exceeds payload", n)
			return NewColumn(k, 0)
		}
		c.floats = make([]float64, n)
		for i := range c.floats {
			c.floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
			d.off += 8
		}
	case Bool:
		c.bools = make([]bool, n)
		for i := range c.bools {
			c.bools[i] = d.byte1() != 0
		}
	case String:
		c.strs = make([]string, n)
		for i := range c.strs {
			c.strs[i] = d.str()
		}
	}
	return c
}
