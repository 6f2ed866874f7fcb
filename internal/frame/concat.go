package frame

// ConcatDiagonal stacks frames vertically over the union of their columns.
// Columns keep first-seen order; a frame lacking a column contributes nulls.
// Numeric columns whose kinds differ across frames are promoted to Float64;
// any other kind conflict is a SchemaError.
func ConcatDiagonal(frames ...*Frame) (*Frame, error) {
	var names []string
	kinds := make(map[string]Kind)
	total := 0
	for _, f := range frames {
		if f == nil {
			continue
		}
		total += f.Len()
		for _, c := range f.cols {
			k, seen := kinds[c.Name()]
			switch {
			case !seen:
				names = append(names, c.Name())
				kinds[c.Name()] = c.Kind()
			case k == c.Kind():
			case k.IsNumeric() && c.Kind().IsNumeric():
				kinds[c.Name()] = KindFloat64
			default:
				return nil, &SchemaError{Column: c.Name(), Want: k, Got: c.Kind()}
			}
		}
	}

	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		kind := kinds[name]
		out := &Series{name: name, kind: kind, n: total}
		out.alloc(total)
		var valid []bool
		off := 0
		for _, f := range frames {
			if f == nil {
				continue
			}
			part, ok := f.Column(name)
			if !ok {
				part = NewNull(name, kind, f.Len())
			} else if part.Kind() != kind {
				var err error
				if part, err = part.Cast(kind); err != nil {
					return nil, err
				}
			}
			for i := 0; i < part.Len(); i++ {
				if part.IsNull(i) {
					if valid == nil {
						valid = allValid(total)
					}
					valid[off+i] = false
				}
			}
			switch kind {
			case KindFloat64, KindFloat32:
				copy(out.nums[off:], part.nums)
			case KindInt64:
				copy(out.ints[off:], part.ints)
			case KindTime:
				copy(out.times[off:], part.times)
			case KindDuration:
				copy(out.durs[off:], part.durs)
			case KindString:
				copy(out.strs[off:], part.strs)
			case KindList:
				copy(out.lists[off:], part.lists)
			}
			off += part.Len()
		}
		out.valid = valid
		cols = append(cols, out)
	}
	res, err := New(cols...)
	if err != nil {
		return nil, err
	}
	res.n = total
	return res, nil
}
