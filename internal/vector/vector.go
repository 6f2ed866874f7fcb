// Package vector treats groups of scalar frame columns as per-row vectors and
// provides the row-wise norm and projection used by the feature combiner.
package vector

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// DefaultAxes are the component suffixes used when none are given.
var DefaultAxes = []string{"x", "y", "z"}

// Vector is an n x k block of components with one axis label per column.
// A row is null when any of its components is null.
type Vector struct {
	axes  []string
	rows  int
	data  *mat.Dense // nil when rows == 0
	valid []bool     // nil means all rows valid
}

// FromFrame builds a Vector from k numeric columns, labelled by axes.
func FromFrame(f *frame.Frame, cols, axes []string) (*Vector, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("vector: no component columns")
	}
	if len(cols) != len(axes) {
		return nil, fmt.Errorf("vector: %d columns but %d axis labels", len(cols), len(axes))
	}
	if err := f.RequireNumeric("", cols...); err != nil {
		return nil, err
	}
	v := &Vector{axes: slices.Clone(axes), rows: f.Len()}
	if v.rows == 0 {
		return v, nil
	}
	v.data = mat.NewDense(v.rows, len(cols), nil)
	for j, name := range cols {
		c, _ := f.Column(name)
		for i := 0; i < v.rows; i++ {
			x, ok := c.Float(i)
			if !ok {
				if v.valid == nil {
					v.valid = make([]bool, v.rows)
					for r := range v.valid {
						v.valid[r] = true
					}
				}
				v.valid[i] = false
			}
			v.data.Set(i, j, x)
		}
	}
	return v, nil
}

// Components returns the component columns named "<prefix>_<axis>".
func Components(prefix string, axes ...string) []string {
	if len(axes) == 0 {
		axes = DefaultAxes
	}
	cols := make([]string, len(axes))
	for i, a := range axes {
		cols[i] = prefix + "_" + a
	}
	return cols
}

// Axes returns the axis labels.
func (v *Vector) Axes() []string { return slices.Clone(v.axes) }

// Len returns the row count.
func (v *Vector) Len() int { return v.rows }

func (v *Vector) null(i int) bool { return v.valid != nil && !v.valid[i] }

func (v *Vector) row(i int) []float64 { return v.data.RawRowView(i) }

// Norm returns the Euclidean norm of every row.
func Norm(name string, v *Vector) (*frame.Series, error) {
	if len(v.axes) == 0 {
		return nil, fmt.Errorf("vector: norm of zero-dimensional vector")
	}
	out := make([]float64, v.rows)
	for i := range out {
		if v.null(i) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Norm(v.row(i), 2)
	}
	return withValidity(frame.NewFloat64(name, out), v.valid), nil
}

// Project returns dot(v1, v2) / |v2| per row: the signed length of v1 along
// v2. A zero-length v2 yields a non-finite value.
func Project(name string, v1, v2 *Vector) (*frame.Series, error) {
	if v1.rows != v2.rows {
		return nil, fmt.Errorf("vector: row count mismatch %d vs %d", v1.rows, v2.rows)
	}
	if !slices.Equal(v1.axes, v2.axes) {
		return nil, fmt.Errorf("vector: axis mismatch %v vs %v", v1.axes, v2.axes)
	}
	out := make([]float64, v1.rows)
	var valid []bool
	for i := range out {
		if v1.null(i) || v2.null(i) {
			if valid == nil {
				valid = make([]bool, v1.rows)
				for r := range valid {
					valid[r] = true
				}
			}
			valid[i] = false
			out[i] = math.NaN()
			continue
		}
		b := v2.row(i)
		out[i] = floats.Dot(v1.row(i), b) / floats.Norm(b, 2)
	}
	return withValidity(frame.NewFloat64(name, out), valid), nil
}

// Decompose splits a list column into one scalar column per axis, named
// "<name>_<axis>". Rows whose list is null or too short get nulls.
func Decompose(f *frame.Frame, col, name string, axes ...string) (*frame.Frame, error) {
	if err := f.RequireKind("", col, frame.KindList); err != nil {
		return nil, err
	}
	if name == "" {
		name = col
	}
	if len(axes) == 0 {
		axes = DefaultAxes
	}
	c, _ := f.Column(col)
	parts := make([]*frame.Series, len(axes))
	for j, axis := range axes {
		vals := make([]float64, f.Len())
		valid := make([]bool, f.Len())
		for i := range vals {
			list, ok := c.List(i)
			if !ok || j >= len(list) {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = list[j]
			valid[i] = true
		}
		parts[j] = frame.NewFloat64(name+"_"+axis, vals).WithNulls(valid)
	}
	return f.WithColumns(parts...)
}

func withValidity(s *frame.Series, valid []bool) *frame.Series {
	if valid == nil {
		return s
	}
	return s.WithNulls(slices.Clone(valid))
}
