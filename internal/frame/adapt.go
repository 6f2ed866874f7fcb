package frame

import (
	"fmt"
	"sort"
	"time"
)

// From adapts an external table representation into a Frame. Accepted inputs
// are *Frame, Frame, column maps (name -> typed slice) and row records
// ([]map[string]any). Map-based inputs yield columns in name order.
func From(v any) (*Frame, error) {
	switch t := v.(type) {
	case *Frame:
		if t == nil {
			return nil, &UnsupportedTypeError{Type: "nil *frame.Frame"}
		}
		return t, nil
	case Frame:
		return &t, nil
	case map[string]any:
		return fromColumns(t)
	case []map[string]any:
		return fromRecords(t)
	}
	return nil, &UnsupportedTypeError{Type: fmt.Sprintf("%T", v)}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fromColumns(m map[string]any) (*Frame, error) {
	cols := make([]*Series, 0, len(m))
	for _, name := range sortedKeys(m) {
		s, err := seriesFromSlice(name, m[name])
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...)
}

func seriesFromSlice(name string, v any) (*Series, error) {
	switch t := v.(type) {
	case *Series:
		return t.Rename(name), nil
	case []float64:
		return NewFloat64(name, t), nil
	case []float32:
		return NewFloat32(name, t), nil
	case []int64:
		return NewInt64(name, t), nil
	case []int:
		ints := make([]int64, len(t))
		for i, x := range t {
			ints[i] = int64(x)
		}
		return NewInt64(name, ints), nil
	case []time.Time:
		return NewTime(name, t), nil
	case []time.Duration:
		return NewDuration(name, t), nil
	case []string:
		return NewString(name, t), nil
	case [][]float64:
		return NewList(name, t), nil
	case []any:
		return seriesFromValues(name, t)
	}
	return nil, &UnsupportedTypeError{Type: fmt.Sprintf("column %q of %T", name, v)}
}

func kindOf(v any) Kind {
	switch v.(type) {
	case float64:
		return KindFloat64
	case float32:
		return KindFloat32
	case int64, int, int32:
		return KindInt64
	case time.Time:
		return KindTime
	case time.Duration:
		return KindDuration
	case string:
		return KindString
	case []float64:
		return KindList
	}
	return KindInvalid
}

// seriesFromValues builds a series from boxed values; nil entries are null.
// The kind is resolved over all values: mixed numeric kinds widen to Float64
// unless every value is an integer, and any other mix is a SchemaError.
func seriesFromValues(name string, values []any) (*Series, error) {
	kind := KindInvalid
	for _, v := range values {
		if v == nil {
			continue
		}
		got := kindOf(v)
		if got == KindInvalid {
			return nil, &UnsupportedTypeError{Type: fmt.Sprintf("value of %T in column %q", v, name)}
		}
		switch {
		case kind == KindInvalid, kind == got:
			kind = got
		case kind.IsNumeric() && got.IsNumeric():
			kind = KindFloat64
		default:
			return nil, &SchemaError{Column: name, Want: kind, Got: got}
		}
	}
	if kind == KindInvalid {
		// Entirely null column.
		kind = KindFloat64
	}
	s := NewNull(name, kind, len(values))
	valid := s.valid
	for i, v := range values {
		if v == nil {
			continue
		}
		valid[i] = true
		switch kind {
		case KindFloat64, KindFloat32:
			s.nums[i] = toFloat(v)
		case KindInt64:
			s.ints[i] = toInt(v)
		case KindTime:
			s.times[i] = v.(time.Time)
		case KindDuration:
			s.durs[i] = v.(time.Duration)
		case KindString:
			s.strs[i] = v.(string)
		case KindList:
			s.lists[i] = v.([]float64)
		}
	}
	if s.NullCount() == 0 {
		s.valid = nil
	}
	return s, nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	}
	return 0
}

func toInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	}
	return 0
}

func fromRecords(rows []map[string]any) (*Frame, error) {
	names := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			names[k] = struct{}{}
		}
	}
	cols := make([]*Series, 0, len(names))
	values := make([]any, len(rows))
	for _, name := range sortedKeys(names) {
		for i, row := range rows {
			values[i] = row[name]
		}
		s, err := seriesFromValues(name, values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...)
}
