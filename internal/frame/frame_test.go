package frame

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func TestNewRejectsMismatchedColumns(t *testing.T) {
	_, err := New(NewFloat64("a", []float64{1, 2}), NewFloat64("b", []float64{1}))
	require.Error(t, err)

	_, err = New(NewFloat64("a", []float64{1}), NewFloat64("a", []float64{2}))
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	f := MustNew(NewFloat64("a", []float64{1}))
	require.NoError(t, f.Require("t", "a"))

	err := f.Require("candidates", "a", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "missing", se.Column)
	assert.Equal(t, "candidates", se.Table)
}

func TestRequireKind(t *testing.T) {
	f := MustNew(NewString("time", []string{"x"}))
	err := f.RequireKind("state", "time", KindTime)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindString, se.Got)
	assert.Equal(t, KindTime, se.Want)
	assert.Contains(t, err.Error(), "want time")
}

func TestRenameIgnoresAbsentKeys(t *testing.T) {
	f := MustNew(NewFloat64("Vl_x", []float64{1}), NewFloat64("d_star", []float64{2}))
	out, err := f.Rename(map[string]string{"Vl_x": "b_vecL_r", "Vl_y": "b_vecL_t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b_vecL_r", "d_star"}, out.Names())
	assert.Equal(t, []string{"Vl_x", "d_star"}, f.Names(), "input unchanged")
}

func TestWithColumnsReplacesAndAppends(t *testing.T) {
	f := MustNew(NewFloat64("a", []float64{1, 2}), NewFloat64("b", []float64{3, 4}))
	out, err := f.WithColumns(NewFloat64("a", []float64{9, 9}), NewFloat64("c", []float64{5, 6}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out.Names())
	a, _ := out.Column("a")
	assert.Equal(t, []float64{9, 9}, a.Float64s())

	_, err = f.WithColumns(NewFloat64("d", []float64{1}))
	require.Error(t, err)
}

func TestDropAndSelect(t *testing.T) {
	f := MustNew(NewFloat64("a", []float64{1}), NewFloat64("b", []float64{2}), NewFloat64("c", []float64{3}))
	assert.Equal(t, []string{"a", "c"}, f.Drop("b", "zzz").Names())

	sel, err := f.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sel.Names())

	_, err = f.Select("nope")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestFilter(t *testing.T) {
	f := MustNew(NewFloat64("a", []float64{1, 2, 3}))
	out, err := f.Filter([]bool{true, false, true})
	require.NoError(t, err)
	a, _ := out.Column("a")
	assert.Equal(t, []float64{1, 3}, a.Float64s())

	_, err = f.Filter([]bool{true})
	require.Error(t, err)
}

func TestCastFloats(t *testing.T) {
	f := MustNew(NewFloat32("a", []float32{1.5}), NewInt64("b", []int64{2}))
	out, err := f.CastFloats(KindFloat64)
	require.NoError(t, err)
	a, _ := out.Column("a")
	b, _ := out.Column("b")
	assert.Equal(t, KindFloat64, a.Kind())
	assert.Equal(t, KindInt64, b.Kind())
}

func TestFillNull(t *testing.T) {
	r := NewFloat64("radial_distance", []float64{5, 0, math.NaN()}).WithNulls([]bool{true, false, true})
	f := MustNew(r)

	out, err := f.FillNull("radial_distance", 1.0)
	require.NoError(t, err)
	c, _ := out.Column("radial_distance")
	assert.Equal(t, 0, c.NullCount())
	assert.Equal(t, 1.0, c.Float64s()[1])
	assert.True(t, math.IsNaN(c.Float64s()[2]), "NaN is a value, not a null")

	g := MustNew(NewFloat64("x", []float64{1, 2}))
	out, err = g.FillNull("radial_distance", 1.0)
	require.NoError(t, err)
	c, ok := out.Column("radial_distance")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1}, c.Float64s())
}

func TestMapPropagatesNulls(t *testing.T) {
	a := NewFloat64("a", []float64{1, 2, 3}).WithNulls([]bool{true, false, true})
	b := NewFloat64("b", []float64{2, 2, 0})

	sum, err := Map2("s", a, b, func(x, y float64) float64 { return x / y })
	require.NoError(t, err)
	assert.False(t, sum.IsNull(0))
	assert.True(t, sum.IsNull(1))
	v, ok := sum.Float(2)
	assert.True(t, ok)
	assert.True(t, math.IsInf(v, 1))

	sq, err := Map("sq", a, func(x float64) float64 { return x * x })
	require.NoError(t, err)
	assert.True(t, sq.IsNull(1))
	v, _ = sq.Float(2)
	assert.Equal(t, 9.0, v)

	_, err = Map("bad", NewString("s", []string{"x"}), math.Sqrt)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestSortBy(t *testing.T) {
	f := MustNew(
		NewTime("time", []time.Time{at(3), at(1), at(2), at(1)}),
		NewFloat64("v", []float64{3, 1, 2, 10}),
	)
	sorted, err := f.IsSortedBy("time")
	require.NoError(t, err)
	assert.False(t, sorted)

	out, err := f.SortBy("time")
	require.NoError(t, err)
	v, _ := out.Column("v")
	assert.Equal(t, []float64{1, 10, 2, 3}, v.Float64s(), "stable")

	same, err := out.SortBy("time")
	require.NoError(t, err)
	assert.Same(t, out, same)
}

func TestSortByNullKey(t *testing.T) {
	f := MustNew(NewTime("time", []time.Time{at(1), {}}).WithNulls([]bool{true, false}))
	_, err := f.SortBy("time")
	assert.ErrorIs(t, err, ErrUnsortable)
}

func TestUniqueByKeepsFirst(t *testing.T) {
	f := MustNew(
		NewTime("time", []time.Time{at(1), at(1), at(2)}),
		NewFloat64("v", []float64{1, 2, 3}),
	)
	out, err := f.UniqueBy("time")
	require.NoError(t, err)
	v, _ := out.Column("v")
	assert.Equal(t, []float64{1, 3}, v.Float64s())
}

func TestResample(t *testing.T) {
	f := MustNew(
		NewTime("time", []time.Time{at(0), at(30), at(61), at(200)}),
		NewFloat64("n", []float64{1, 3, 5, 7}),
		NewString("label", []string{"a", "b", "c", "d"}),
	)
	out, err := f.Resample("time", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "n"}, out.Names())
	require.Equal(t, 3, out.Len())

	tc, _ := out.Column("time")
	first, _ := tc.Time(0)
	assert.Equal(t, at(30), first)

	n, _ := out.Column("n")
	assert.Equal(t, []float64{2, 5, 7}, n.Float64s())
}

func TestPartitionByYear(t *testing.T) {
	f := MustNew(
		NewTime("time", []time.Time{
			time.Date(2010, 12, 31, 23, 0, 0, 0, time.UTC),
			time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC),
		}),
		NewFloat64("v", []float64{1, 2, 3}),
	)
	parts, err := f.PartitionByYear("time")
	require.NoError(t, err)
	assert.Equal(t, []int{2010, 2011}, Years(parts))
	v, _ := parts[2010].Column("v")
	assert.Equal(t, []float64{1, 3}, v.Float64s())
}

func TestFrom(t *testing.T) {
	f := MustNew(NewFloat64("a", []float64{1}))
	got, err := From(f)
	require.NoError(t, err)
	assert.Same(t, f, got)

	got, err = From(map[string]any{"b": []int{1, 2}, "a": []float64{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Names())

	got, err = From([]map[string]any{
		{"x": 1.0, "s": "THB"},
		{"x": nil, "s": "THB"},
	})
	require.NoError(t, err)
	x, _ := got.Column("x")
	assert.True(t, x.IsNull(1))

	_, err = From(42)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	var ute *UnsupportedTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "int", ute.Type)
}

func TestFromRecordsResolvesKindOverAllRows(t *testing.T) {
	got, err := From([]map[string]any{{"d_star": 1}, {"d_star": 2.5}, {"d_star": nil}})
	require.NoError(t, err)
	d, _ := got.Column("d_star")
	require.Equal(t, KindFloat64, d.Kind())
	v, ok := d.Float(1)
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.True(t, d.IsNull(2))

	got, err = From([]map[string]any{{"n": int64(1) << 60}, {"n": 3}})
	require.NoError(t, err)
	n, _ := got.Column("n")
	require.Equal(t, KindInt64, n.Kind())
	assert.Equal(t, int64(1)<<60, n.Value(0))

	_, err = From([]map[string]any{{"x": 1.0}, {"x": "THB"}})
	assert.ErrorIs(t, err, ErrSchema)
}
