package frame

import (
	"fmt"
	"sort"
	"time"
)

// keyLess returns a comparator over a Time or numeric key column.
func keyLess(c *Series) (func(i, j int) bool, error) {
	if c.NullCount() > 0 {
		return nil, fmt.Errorf("%q has %d nulls: %w", c.Name(), c.NullCount(), ErrUnsortable)
	}
	switch c.Kind() {
	case KindTime:
		return func(i, j int) bool { return c.times[i].Before(c.times[j]) }, nil
	case KindDuration:
		return func(i, j int) bool { return c.durs[i] < c.durs[j] }, nil
	case KindInt64:
		return func(i, j int) bool { return c.ints[i] < c.ints[j] }, nil
	case KindFloat64, KindFloat32:
		return func(i, j int) bool { return c.nums[i] < c.nums[j] }, nil
	case KindString:
		return func(i, j int) bool { return c.strs[i] < c.strs[j] }, nil
	}
	return nil, fmt.Errorf("%q of kind %s: %w", c.Name(), c.Kind(), ErrUnsortable)
}

// IsSortedBy reports whether the frame is in non-decreasing order of name.
func (f *Frame) IsSortedBy(name string) (bool, error) {
	c, ok := f.Column(name)
	if !ok {
		return false, &SchemaError{Column: name}
	}
	less, err := keyLess(c)
	if err != nil {
		return false, err
	}
	for i := 1; i < f.n; i++ {
		if less(i, i-1) {
			return false, nil
		}
	}
	return true, nil
}

// SortBy returns the frame stably sorted by name. An already sorted frame is
// returned as is.
func (f *Frame) SortBy(name string) (*Frame, error) {
	sorted, err := f.IsSortedBy(name)
	if err != nil {
		return nil, err
	}
	if sorted {
		return f, nil
	}
	c, _ := f.Column(name)
	less, _ := keyLess(c)
	idx := make([]int, f.n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })
	return f.Take(idx), nil
}

// UniqueBy keeps the first row for every distinct value of name, preserving
// row order.
func (f *Frame) UniqueBy(name string) (*Frame, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	if _, err := keyLess(c); err != nil {
		return nil, err
	}
	seen := make(map[any]struct{}, f.n)
	idx := make([]int, 0, f.n)
	for i := 0; i < f.n; i++ {
		key := c.Value(i)
		if t, isTime := key.(time.Time); isTime {
			key = t.UnixNano()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		idx = append(idx, i)
	}
	if len(idx) == f.n {
		return f, nil
	}
	return f.Take(idx), nil
}
