package frame

import (
	"fmt"
	"math"
	"time"
)

// Kind identifies the physical type of a Series.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFloat64
	KindFloat32
	KindInt64
	KindTime
	KindDuration
	KindString
	KindList // variable-length []float64 per row
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindFloat64:  "float64",
	KindFloat32:  "float32",
	KindInt64:    "int64",
	KindTime:     "time",
	KindDuration: "duration",
	KindString:   "string",
	KindList:     "list[float64]",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsNumeric reports whether values of this kind can be read with Series.Float.
func (k Kind) IsNumeric() bool {
	return k == KindFloat64 || k == KindFloat32 || k == KindInt64
}

// IsFloat reports whether the kind is a floating-point kind.
func (k Kind) IsFloat() bool {
	return k == KindFloat64 || k == KindFloat32
}

// Series is an immutable named column. A nil validity mask means every row is
// valid. Null is distinct from NaN: NaN is an ordinary float value.
type Series struct {
	name  string
	kind  Kind
	n     int
	valid []bool

	nums  []float64 // KindFloat64, KindFloat32
	ints  []int64
	times []time.Time
	durs  []time.Duration
	strs  []string
	lists [][]float64
}

// NewFloat64 returns a Float64 series with no nulls.
func NewFloat64(name string, values []float64) *Series {
	return &Series{name: name, kind: KindFloat64, n: len(values), nums: values}
}

// NewFloat32 returns a Float32 series. Values are widened for storage but keep
// float32 precision.
func NewFloat32(name string, values []float32) *Series {
	nums := make([]float64, len(values))
	for i, v := range values {
		nums[i] = float64(v)
	}
	return &Series{name: name, kind: KindFloat32, n: len(values), nums: nums}
}

// NewInt64 returns an Int64 series with no nulls.
func NewInt64(name string, values []int64) *Series {
	return &Series{name: name, kind: KindInt64, n: len(values), ints: values}
}

// NewTime returns a Time series with no nulls.
func NewTime(name string, values []time.Time) *Series {
	return &Series{name: name, kind: KindTime, n: len(values), times: values}
}

// NewDuration returns a Duration series with no nulls.
func NewDuration(name string, values []time.Duration) *Series {
	return &Series{name: name, kind: KindDuration, n: len(values), durs: values}
}

// NewString returns a String series with no nulls.
func NewString(name string, values []string) *Series {
	return &Series{name: name, kind: KindString, n: len(values), strs: values}
}

// NewList returns a List series. Nil entries are null.
func NewList(name string, values [][]float64) *Series {
	s := &Series{name: name, kind: KindList, n: len(values), lists: values}
	for i, v := range values {
		if v == nil {
			if s.valid == nil {
				s.valid = allValid(len(values))
			}
			s.valid[i] = false
		}
	}
	return s
}

// NewNull returns an all-null series of the given kind and length.
func NewNull(name string, kind Kind, n int) *Series {
	s := &Series{name: name, kind: kind, n: n, valid: make([]bool, n)}
	s.alloc(n)
	return s
}

// WithNulls returns a copy of s whose validity mask is valid. The mask must
// have exactly Len() entries.
func (s *Series) WithNulls(valid []bool) *Series {
	if len(valid) != s.n {
		panic(fmt.Sprintf("frame: validity mask length %d for series %q of length %d", len(valid), s.name, s.n))
	}
	c := *s
	c.valid = valid
	return &c
}

func (s *Series) alloc(n int) {
	switch s.kind {
	case KindFloat64, KindFloat32:
		s.nums = make([]float64, n)
	case KindInt64:
		s.ints = make([]int64, n)
	case KindTime:
		s.times = make([]time.Time, n)
	case KindDuration:
		s.durs = make([]time.Duration, n)
	case KindString:
		s.strs = make([]string, n)
	case KindList:
		s.lists = make([][]float64, n)
	}
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

func (s *Series) Name() string { return s.name }
func (s *Series) Kind() Kind   { return s.kind }
func (s *Series) Len() int     { return s.n }

// IsNull reports whether row i is null.
func (s *Series) IsNull(i int) bool {
	return s.valid != nil && !s.valid[i]
}

// NullCount returns the number of null rows.
func (s *Series) NullCount() int {
	if s.valid == nil {
		return 0
	}
	count := 0
	for _, ok := range s.valid {
		if !ok {
			count++
		}
	}
	return count
}

// Float returns row i of a numeric series. ok is false for nulls and
// non-numeric kinds.
func (s *Series) Float(i int) (v float64, ok bool) {
	if s.IsNull(i) {
		return math.NaN(), false
	}
	switch s.kind {
	case KindFloat64, KindFloat32:
		return s.nums[i], true
	case KindInt64:
		return float64(s.ints[i]), true
	}
	return math.NaN(), false
}

// Float64s returns a copy of a numeric series with nulls as NaN.
func (s *Series) Float64s() []float64 {
	out := make([]float64, s.n)
	for i := range out {
		out[i], _ = s.Float(i)
	}
	return out
}

// Time returns row i of a Time series.
func (s *Series) Time(i int) (time.Time, bool) {
	if s.kind != KindTime || s.IsNull(i) {
		return time.Time{}, false
	}
	return s.times[i], true
}

// Duration returns row i of a Duration series.
func (s *Series) Duration(i int) (time.Duration, bool) {
	if s.kind != KindDuration || s.IsNull(i) {
		return 0, false
	}
	return s.durs[i], true
}

// Str returns row i of a String series.
func (s *Series) Str(i int) (string, bool) {
	if s.kind != KindString || s.IsNull(i) {
		return "", false
	}
	return s.strs[i], true
}

// List returns row i of a List series. The slice must not be modified.
func (s *Series) List(i int) ([]float64, bool) {
	if s.kind != KindList || s.IsNull(i) {
		return nil, false
	}
	return s.lists[i], true
}

// Value returns row i boxed, or nil when null.
func (s *Series) Value(i int) any {
	if s.IsNull(i) {
		return nil
	}
	switch s.kind {
	case KindFloat64:
		return s.nums[i]
	case KindFloat32:
		return float32(s.nums[i])
	case KindInt64:
		return s.ints[i]
	case KindTime:
		return s.times[i]
	case KindDuration:
		return s.durs[i]
	case KindString:
		return s.strs[i]
	case KindList:
		return s.lists[i]
	}
	return nil
}

// Rename returns s under a new name. Storage is shared; series are immutable.
func (s *Series) Rename(name string) *Series {
	c := *s
	c.name = name
	return &c
}

// Take gathers rows by index. A negative index produces a null row.
func (s *Series) Take(idx []int) *Series {
	out := &Series{name: s.name, kind: s.kind, n: len(idx)}
	out.alloc(len(idx))
	var valid []bool
	for j, i := range idx {
		if i < 0 || s.IsNull(i) {
			if valid == nil {
				valid = allValid(len(idx))
			}
			valid[j] = false
			continue
		}
		switch s.kind {
		case KindFloat64, KindFloat32:
			out.nums[j] = s.nums[i]
		case KindInt64:
			out.ints[j] = s.ints[i]
		case KindTime:
			out.times[j] = s.times[i]
		case KindDuration:
			out.durs[j] = s.durs[i]
		case KindString:
			out.strs[j] = s.strs[i]
		case KindList:
			out.lists[j] = s.lists[i]
		}
	}
	out.valid = valid
	return out
}

// Cast converts between numeric kinds. Casting a series to its own kind
// returns it unchanged.
func (s *Series) Cast(kind Kind) (*Series, error) {
	if s.kind == kind {
		return s, nil
	}
	if !s.kind.IsNumeric() || !kind.IsNumeric() {
		return nil, fmt.Errorf("cast %q from %s to %s: not supported", s.name, s.kind, kind)
	}
	out := &Series{name: s.name, kind: kind, n: s.n, valid: s.valid}
	out.alloc(s.n)
	for i := 0; i < s.n; i++ {
		v, ok := s.Float(i)
		if !ok {
			continue
		}
		switch kind {
		case KindFloat64:
			out.nums[i] = v
		case KindFloat32:
			out.nums[i] = float64(float32(v))
		case KindInt64:
			out.ints[i] = int64(v)
		}
	}
	return out, nil
}
