package frame

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Resample groups rows into fixed windows of length every on the Time column
// on and averages numeric columns per window, ignoring nulls. The output time
// is the window centre. Non-numeric columns are dropped. Windows with no rows
// are not emitted.
func (f *Frame) Resample(on string, every time.Duration) (*Frame, error) {
	if every <= 0 {
		return nil, fmt.Errorf("resample: window must be positive, got %s", every)
	}
	if err := f.RequireKind("", on, KindTime); err != nil {
		return nil, err
	}
	key, _ := f.Column(on)
	if key.NullCount() > 0 {
		return nil, fmt.Errorf("resample %q: %w", on, ErrUnsortable)
	}

	groups := make(map[time.Time][]int)
	var starts []time.Time
	for i := 0; i < f.n; i++ {
		t, _ := key.Time(i)
		start := t.Truncate(every)
		if _, ok := groups[start]; !ok {
			starts = append(starts, start)
		}
		groups[start] = append(groups[start], i)
	}
	sort.Slice(starts, func(a, b int) bool { return starts[a].Before(starts[b]) })

	centres := make([]time.Time, len(starts))
	for g, start := range starts {
		centres[g] = start.Add(every / 2)
	}
	cols := []*Series{NewTime(on, centres)}

	buf := make([]float64, 0, 64)
	for _, c := range f.cols {
		if c.Name() == on || !c.Kind().IsNumeric() {
			continue
		}
		means := make([]float64, len(starts))
		var valid []bool
		for g, start := range starts {
			buf = buf[:0]
			for _, i := range groups[start] {
				if v, ok := c.Float(i); ok {
					buf = append(buf, v)
				}
			}
			if len(buf) == 0 {
				if valid == nil {
					valid = allValid(len(starts))
				}
				valid[g] = false
				means[g] = math.NaN()
				continue
			}
			means[g] = stat.Mean(buf, nil)
		}
		s := NewFloat64(c.Name(), means)
		if valid != nil {
			s = s.WithNulls(valid)
		}
		cols = append(cols, s)
	}
	return New(cols...)
}
