package frame

// RightSuffix is appended to right-hand column names that collide with the
// left frame in JoinAsof.
const RightSuffix = "_right"

// JoinAsof attaches to every left row the right row with the greatest key less
// than or equal to the left key. Left rows without such a right row receive
// nulls. Both frames must already be sorted ascending by on; this is not
// checked. The output has exactly left.Len() rows in left order.
func JoinAsof(left, right *Frame, on string) (*Frame, error) {
	if err := left.RequireKind("left", on, KindTime); err != nil {
		return nil, err
	}
	if err := right.RequireKind("right", on, KindTime); err != nil {
		return nil, err
	}
	lk, _ := left.Column(on)
	rk, _ := right.Column(on)

	idx := make([]int, left.Len())
	j := -1
	for i := range idx {
		lt, ok := lk.Time(i)
		if !ok {
			idx[i] = -1
			continue
		}
		for j+1 < right.Len() {
			rt, ok := rk.Time(j + 1)
			if ok && rt.After(lt) {
				break
			}
			j++
		}
		// Skip back over null right keys.
		m := j
		for m >= 0 && rk.IsNull(m) {
			m--
		}
		idx[i] = m
	}

	cols := left.Columns()
	for _, c := range right.Columns() {
		if c.Name() == on {
			continue
		}
		taken := c.Take(idx)
		if left.Has(c.Name()) {
			taken = taken.Rename(c.Name() + RightSuffix)
		}
		cols = append(cols, taken)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.n = left.Len()
	return out, nil
}
