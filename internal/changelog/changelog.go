// Package changelog keeps an append-only record of every write made to a
// record group.
//
// Each entry is one row of the group's "logger" dataset: when it was
// written, the token of the call that produced it, which rows were touched
// and a free-form message. Rows are never rewritten or removed.
package changelog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/fault"
)

const (
	// Name is the dataset name of the change log inside a record group.
	Name = "logger"

	// VersionAttr holds the layout version of the log rows.
	VersionAttr = "version"

	// Version is the current layout version.
	Version = "1"
)

// Dtype is the row type of the change log.
var Dtype = arrayfile.NewCompound(
	arrayfile.Field{Name: "date", Kind: arrayfile.Int64},
	arrayfile.Field{Name: "token", Kind: arrayfile.String},
	arrayfile.Field{Name: "index", Kind: arrayfile.String},
	arrayfile.Field{Name: "message", Kind: arrayfile.String},
)

// Entry is one change-log row.
type Entry struct {
	Date    time.Time `json:"date"`
	Token   string    `json:"token"`
	Index   []int     `json:"index"`
	Message string    `json:"message"`
}

// Create adds an empty change log to group.
func Create(group *arrayfile.Group) (*arrayfile.Dataset, error) {
	ds, err := group.CreateDataset(Name, Dtype, 0)
	if err != nil {
		return nil, fmt.Errorf("create change log: %w", err)
	}
	ds.Attrs()[VersionAttr] = []string{Version}
	return ds, nil
}

// Lookup returns the change log of group.
func Lookup(group *arrayfile.Group) (*arrayfile.Dataset, error) {
	ds, err := group.Dataset(Name)
	if err != nil {
		return nil, fault.Schema(group.Name(), "missing change log: %v", err)
	}
	if !ds.Dtype().Equal(Dtype) {
		return nil, fault.Schema(ds.Name(), "change log has dtype %s", ds.Dtype())
	}
	return ds, nil
}

// Append adds exactly one row describing e to log.
func Append(log *arrayfile.Dataset, e Entry) error {
	row := arrayfile.NewArray(Dtype, 1)
	if err := row.SetRecord(0, 0, e.Date.UnixNano(), e.Token, FormatRanges(e.Index), e.Message); err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	if err := log.Append(row); err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

// Dump returns every entry of log in insertion order.
func Dump(log *arrayfile.Dataset) ([]Entry, error) {
	data, err := log.Read(arrayfile.All())
	if err != nil {
		return nil, fmt.Errorf("dump change log: %w", err)
	}
	dates := data.Column(0).Int64s()
	tokens := data.Column(1).Strings()
	indices := data.Column(2).Strings()
	messages := data.Column(3).Strings()

	out := make([]Entry, data.Rows())
	for i := range out {
		idx, err := ParseRanges(indices[i])
		if err != nil {
			return nil, fault.Schema(log.Name(), "row %d: %v", i, err)
		}
		out[i] = Entry{
			Date:    time.Unix(0, dates[i]).UTC(),
			Token:   tokens[i],
			Index:   idx,
			Message: messages[i],
		}
	}
	return out, nil
}

// FormatRanges renders rows as a comma separated list of runs, e.g.
// "0-2,5". The input order does not matter; duplicates collapse.
func FormatRanges(rows []int) string {
	if len(rows) == 0 {
		return ""
	}
	sorted := slices.Clone(rows)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var b strings.Builder
	start := sorted[0]
	prev := start
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(start))
		if prev != start {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(prev))
		}
	}
	for _, r := range sorted[1:] {
		if r == prev+1 {
			prev = r
			continue
		}
		flush()
		start, prev = r, r
	}
	flush()
	return b.String()
}

// ParseRanges is the inverse of FormatRanges.
func ParseRanges(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("parse ranges %q: %w", s, err)
		}
		stop := start
		if isRange {
			if stop, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("parse ranges %q: %w", s, err)
			}
		}
		if start < 0 || stop < start {
			return nil, fmt.Errorf("parse ranges %q: bad run %q", s, part)
		}
		for r := start; r <= stop; r++ {
			out = append(out, r)
		}
	}
	return out, nil
}
