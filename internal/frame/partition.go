package frame

import (
	"fmt"
	"sort"
)

// PartitionByYear splits the frame by the UTC year of the Time column on.
// Row order within each partition is preserved.
func (f *Frame) PartitionByYear(on string) (map[int]*Frame, error) {
	if err := f.RequireKind("", on, KindTime); err != nil {
		return nil, err
	}
	key, _ := f.Column(on)
	if key.NullCount() > 0 {
		return nil, fmt.Errorf("partition %q: %w", on, ErrUnsortable)
	}
	rows := make(map[int][]int)
	for i := 0; i < f.n; i++ {
		t, _ := key.Time(i)
		y := t.UTC().Year()
		rows[y] = append(rows[y], i)
	}
	out := make(map[int]*Frame, len(rows))
	for y, idx := range rows {
		out[y] = f.Take(idx)
	}
	return out, nil
}

// Years returns the keys of a partition map in ascending order.
func Years(parts map[int]*Frame) []int {
	years := make([]int, 0, len(parts))
	for y := range parts {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
