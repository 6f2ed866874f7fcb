package catalog

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// SummaryColumns are the catalog columns Summarize reports on.
var SummaryColumns = []string{"L_mn_norm", "j0_norm", "v_mn", "ion_inertial_length"}

// ColumnSummary describes the finite values of one column for one mission.
type ColumnSummary struct {
	Mission string
	Column  string
	Count   int // finite, non-null values
	Mean    float64
	StdDev  float64
	Median  float64
}

// Summarize computes per-mission statistics of cols over a harmonized
// catalog. Nulls, NaN and Inf are skipped; absent columns are ignored.
// Results are ordered by mission, then column.
func Summarize(f *frame.Frame, cols ...string) ([]ColumnSummary, error) {
	if err := f.RequireKind("catalog", ColSat, frame.KindString); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		cols = SummaryColumns
	}
	sat, _ := f.Column(ColSat)
	rows := map[string][]int{}
	for i := 0; i < f.Len(); i++ {
		s, _ := sat.Str(i)
		rows[s] = append(rows[s], i)
	}
	missions := make([]string, 0, len(rows))
	for m := range rows {
		missions = append(missions, m)
	}
	slices.Sort(missions)

	var out []ColumnSummary
	for _, m := range missions {
		for _, name := range cols {
			c, ok := f.Column(name)
			if !ok || !c.Kind().IsNumeric() {
				continue
			}
			var xs []float64
			for _, i := range rows[m] {
				if v, ok := c.Float(i); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
					xs = append(xs, v)
				}
			}
			out = append(out, summarize(m, name, xs))
		}
	}
	return out, nil
}

func summarize(mission, name string, xs []float64) ColumnSummary {
	s := ColumnSummary{Mission: mission, Column: name, Count: len(xs)}
	if len(xs) == 0 {
		s.Mean, s.StdDev, s.Median = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	slices.Sort(xs)
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	return s
}
