package catalog

import (
	"errors"
	"math"
	"sort"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// Columns added by Harmonize.
const (
	ColSat            = "sat"
	ColRadialDistance = "radial_distance"
	ColRBin           = "r_bin"
)

// DefaultRadialDistance is assumed for rows without a heliocentric distance
// (near-Earth missions), in AU.
const DefaultRadialDistance = 1.0

// ErrNoTables is returned when there is nothing to harmonize.
var ErrNoTables = errors.New("catalog: no mission tables")

// Labels returns the mission labels of tables in the order Harmonize stacks
// them.
func Labels(tables map[string]*frame.Frame) []string {
	labels := make([]string, 0, len(tables))
	for k := range tables {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// Harmonize tags every table with its mission label, stacks them over the
// union of their columns, defaults missing radial distances to 1 AU and bins
// the distance to the nearest integer.
func Harmonize(tables map[string]*frame.Frame) (*frame.Frame, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	labels := Labels(tables)
	parts := make([]*frame.Frame, 0, len(labels))
	for _, label := range labels {
		f := tables[label]
		sat := make([]string, f.Len())
		for i := range sat {
			sat[i] = label
		}
		tagged, err := f.WithColumns(frame.NewString(ColSat, sat))
		if err != nil {
			return nil, err
		}
		parts = append(parts, tagged)
	}

	out, err := frame.ConcatDiagonal(parts...)
	if err != nil {
		return nil, err
	}
	if out, err = out.FillNull(ColRadialDistance, DefaultRadialDistance); err != nil {
		return nil, err
	}
	r, _ := out.Column(ColRadialDistance)
	rbin, err := frame.Map(ColRBin, r, math.Round)
	if err != nil {
		return nil, err
	}
	return out.WithColumns(rbin)
}
