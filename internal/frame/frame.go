// Package frame provides the canonical in-memory table used by every stage of
// the candidate pipeline: an immutable, column-oriented set of named Series
// with explicit null masks.
//
// All operations return new Frames; inputs are never modified. Series storage
// may be shared between Frames because Series are immutable.
package frame

import (
	"fmt"
	"math"
)

// Frame is an ordered collection of equally long Series.
type Frame struct {
	cols  []*Series
	index map[string]int
	n     int
}

// New builds a Frame from columns. Names must be unique and lengths equal.
func New(cols ...*Series) (*Frame, error) {
	f := &Frame{cols: make([]*Series, 0, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("frame: column %d is nil", i)
		}
		if _, dup := f.index[c.Name()]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c.Name())
		}
		if i == 0 {
			f.n = c.Len()
		} else if c.Len() != f.n {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name(), c.Len(), f.n)
		}
		f.index[c.Name()] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is New for statically known columns; it panics on error.
func MustNew(cols ...*Series) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the row count.
func (f *Frame) Len() int { return f.n }

// Width returns the column count.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Series {
	return append([]*Series(nil), f.cols...)
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Series, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Require returns a SchemaError for the first missing column.
func (f *Frame) Require(table string, names ...string) error {
	for _, name := range names {
		if !f.Has(name) {
			return &SchemaError{Table: table, Column: name}
		}
	}
	return nil
}

// RequireKind checks that a column exists and has one of the given kinds.
func (f *Frame) RequireKind(table, name string, kinds ...Kind) error {
	c, ok := f.Column(name)
	if !ok {
		return &SchemaError{Table: table, Column: name}
	}
	for _, k := range kinds {
		if c.Kind() == k {
			return nil
		}
	}
	want := KindInvalid
	if len(kinds) > 0 {
		want = kinds[0]
	}
	return &SchemaError{Table: table, Column: name, Want: want, Got: c.Kind()}
}

// RequireNumeric checks that every named column exists and is numeric.
func (f *Frame) RequireNumeric(table string, names ...string) error {
	for _, name := range names {
		if err := f.RequireKind(table, name, KindFloat64, KindFloat32, KindInt64); err != nil {
			return err
		}
	}
	return nil
}

// Rename renames the columns present in mapping; absent keys are ignored.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		if to, ok := mapping[c.Name()]; ok && to != c.Name() {
			cols[i] = c.Rename(to)
			continue
		}
		cols[i] = c
	}
	return New(cols...)
}

// Select returns the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, &SchemaError{Column: name}
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop removes the named columns if present.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, name := range names {
		skip[name] = true
	}
	cols := make([]*Series, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name()] {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.n = f.n
	}
	return out
}

// WithColumns replaces columns with matching names in place and appends the
// rest, in argument order.
func (f *Frame) WithColumns(cols ...*Series) (*Frame, error) {
	out := append([]*Series(nil), f.cols...)
	pos := make(map[string]int, len(f.index))
	for k, v := range f.index {
		pos[k] = v
	}
	for _, c := range cols {
		if f.Width() > 0 && c.Len() != f.n {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name(), c.Len(), f.n)
		}
		if i, ok := pos[c.Name()]; ok {
			out[i] = c
			continue
		}
		pos[c.Name()] = len(out)
		out = append(out, c)
	}
	return New(out...)
}

// Take gathers rows by index; negative indices produce null rows.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Take(idx)
	}
	out := MustNew(cols...)
	out.n = len(idx)
	return out
}

// Filter keeps rows where mask is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != f.n {
		return nil, fmt.Errorf("frame: filter mask has %d entries, want %d", len(mask), f.n)
	}
	idx := make([]int, 0, f.n)
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return f.Take(idx), nil
}

// CastFloats casts every float column to kind (KindFloat64 or KindFloat32).
func (f *Frame) CastFloats(kind Kind) (*Frame, error) {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		if !c.Kind().IsFloat() {
			cols[i] = c
			continue
		}
		cast, err := c.Cast(kind)
		if err != nil {
			return nil, err
		}
		cols[i] = cast
	}
	return New(cols...)
}

// FillNull replaces nulls in a numeric column with value. A missing column is
// created filled with value. NaN values are left untouched.
func (f *Frame) FillNull(name string, value float64) (*Frame, error) {
	c, ok := f.Column(name)
	if !ok {
		values := make([]float64, f.n)
		for i := range values {
			values[i] = value
		}
		return f.WithColumns(NewFloat64(name, values))
	}
	if !c.Kind().IsNumeric() {
		return nil, &SchemaError{Column: name, Want: KindFloat64, Got: c.Kind()}
	}
	values := make([]float64, f.n)
	for i := range values {
		v, ok := c.Float(i)
		if !ok {
			v = value
		}
		values[i] = v
	}
	return f.WithColumns(NewFloat64(name, values))
}

// Map applies fn to every non-null row of a numeric series. Nulls stay null.
func Map(name string, s *Series, fn func(float64) float64) (*Series, error) {
	if !s.Kind().IsNumeric() {
		return nil, &SchemaError{Column: s.Name(), Want: KindFloat64, Got: s.Kind()}
	}
	out := make([]float64, s.Len())
	var valid []bool
	for i := range out {
		v, ok := s.Float(i)
		if !ok {
			if valid == nil {
				valid = allValid(len(out))
			}
			valid[i] = false
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(v)
	}
	res := NewFloat64(name, out)
	if valid != nil {
		res = res.WithNulls(valid)
	}
	return res, nil
}

// Map2 combines two numeric series row-wise. A row is null if either input is.
func Map2(name string, a, b *Series, fn func(x, y float64) float64) (*Series, error) {
	for _, s := range []*Series{a, b} {
		if !s.Kind().IsNumeric() {
			return nil, &SchemaError{Column: s.Name(), Want: KindFloat64, Got: s.Kind()}
		}
	}
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("frame: %q has %d rows, %q has %d", a.Name(), a.Len(), b.Name(), b.Len())
	}
	out := make([]float64, a.Len())
	var valid []bool
	for i := range out {
		x, okx := a.Float(i)
		y, oky := b.Float(i)
		if !okx || !oky {
			if valid == nil {
				valid = allValid(len(out))
			}
			valid[i] = false
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(x, y)
	}
	res := NewFloat64(name, out)
	if valid != nil {
		res = res.WithNulls(valid)
	}
	return res, nil
}
