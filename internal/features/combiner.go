// Package features enriches discontinuity candidates with the plasma state in
// effect at their time and derives the physical parameters of each event:
// boundary-normal flow, thickness, current density and their normalized forms.
package features

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/metrics"
	"github.com/KI7MT/ids-finder/internal/mission"
	"github.com/KI7MT/ids-finder/internal/physics"
	"github.com/KI7MT/ids-finder/internal/vector"
)

// Canonical column names.
const (
	ColTime     = "time"
	ColTStart   = "d_tstart"
	ColTStop    = "d_tstop"
	ColDStar    = "d_star"
	ColBMag     = "b_mag"
	ColSpeed    = "sw_speed"
	ColDensity  = "sw_density"
	ColDuration = "duration"
	ColVelL     = "sw_vel_l"
	ColVelMN    = "sw_vel_mn"
	ColLMN      = "L_mn"
	ColJ0       = "j0"
	ColIonLen   = "ion_inertial_length"
	ColLMNNorm  = "L_mn_norm"
	ColVMN      = "v_mn"
	ColJ0Norm   = "j0_norm"

	// ColEigenvector is the list-typed form of the major eigenvector.
	ColEigenvector = "b_vecL"
)

var (
	rtn = []string{"r", "t", "n"}

	// SolarWindVelocity are the state velocity components in RTN.
	SolarWindVelocity = vector.Components("sw_vel", rtn...)
	// MajorEigenvector are the candidate's maximum-variance direction in RTN.
	MajorEigenvector = vector.Components("b_vecL", rtn...)

	// CandidateRenames maps detector output names to the canonical ones.
	CandidateRenames = map[string]string{
		"Vl_x": "b_vecL_r",
		"Vl_y": "b_vecL_t",
		"Vl_z": "b_vecL_n",
		"Vl":   ColEigenvector,
	}

	// DerivedColumns are the columns added by Combine, in order.
	DerivedColumns = []string{
		ColDuration, ColVelL, ColVelMN, ColLMN, ColJ0,
		ColIonLen, ColLMNNorm, ColVMN, ColJ0Norm,
	}
)

// Combiner joins candidate tables with plasma state for one mission.
type Combiner struct {
	mission string
	cands   map[string]string
	state   map[string]string
	logger  *zap.Logger
}

// NewCombiner builds a Combiner from a mission mapping. A nil mapping uses
// the canonical detector renames only; a nil logger disables logging.
func NewCombiner(m *mission.Mapping, logger *zap.Logger) *Combiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Combiner{cands: CandidateRenames, logger: logger}
	if m != nil {
		c.mission = m.Name
		c.cands = merge(CandidateRenames, m.Candidates)
		c.state = m.State
	}
	return c
}

func merge(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Combine enriches candidates with the nearest preceding state row and the
// derived parameters. The result has one row per candidate, sorted by time.
// Numeric anomalies (no preceding state, zero-length eigenvector, flow
// slower than its L component) surface as null or non-finite values; only
// schema problems and null timestamps are errors.
func (c *Combiner) Combine(candidates, state *frame.Frame) (*frame.Frame, error) {
	start := time.Now()

	cands, err := candidates.Rename(c.cands)
	if err != nil {
		return nil, err
	}
	if c.state != nil {
		if state, err = state.Rename(c.state); err != nil {
			return nil, err
		}
	}
	if cands, err = splitEigenvector(cands); err != nil {
		return nil, err
	}
	if err := checkCandidates(cands); err != nil {
		return nil, err
	}
	if err := checkState(state); err != nil {
		return nil, err
	}

	if cands, err = cands.SortBy(ColTime); err != nil {
		return nil, err
	}
	if state, err = state.SortBy(ColTime); err != nil {
		return nil, err
	}
	df, err := frame.JoinAsof(cands, state, ColTime)
	if err != nil {
		return nil, err
	}

	duration, seconds := eventDuration(df)

	swVel, err := vector.FromFrame(df, SolarWindVelocity, rtn)
	if err != nil {
		return nil, err
	}
	bL, err := vector.FromFrame(df, MajorEigenvector, rtn)
	if err != nil {
		return nil, err
	}
	velL, err := vector.Project(ColVelL, swVel, bL)
	if err != nil {
		return nil, err
	}

	speed, _ := df.Column(ColSpeed)
	velMN, err := frame.Map2(ColVelMN, speed, velL, func(v, l float64) float64 {
		return math.Sqrt(v*v - l*l)
	})
	if err != nil {
		return nil, err
	}
	lmn, err := frame.Map2(ColLMN, velMN, seconds, func(v, s float64) float64 { return v * s })
	if err != nil {
		return nil, err
	}
	dstar, _ := df.Column(ColDStar)
	j0, err := frame.Map2(ColJ0, dstar, velMN, func(d, v float64) float64 {
		return physics.NormalizeCurrentDensity(d / v)
	})
	if err != nil {
		return nil, err
	}
	density, _ := df.Column(ColDensity)
	ionLen, err := physics.IonInertialLengthSeries(ColIonLen, density)
	if err != nil {
		return nil, err
	}
	lmnNorm, err := frame.Map2(ColLMNNorm, lmn, ionLen, func(l, d float64) float64 { return l / d })
	if err != nil {
		return nil, err
	}
	j0Norm, err := alfvenNormalized(df, j0, density)
	if err != nil {
		return nil, err
	}

	out, err := df.WithColumns(
		duration, velL, velMN, lmn, j0, ionLen, lmnNorm,
		velMN.Rename(ColVMN), j0Norm,
	)
	if err != nil {
		return nil, err
	}

	anomalies := countNonFinite(out, DerivedColumns[1:])
	c.logger.Debug("combined candidates",
		zap.String("mission", c.mission),
		zap.Int("rows", out.Len()),
		zap.Any("non_finite", anomalies),
	)
	metrics.ObserveCombine(c.label(), out.Len(), anomalies, time.Since(start))
	return out, nil
}

func (c *Combiner) label() string {
	if c.mission == "" {
		return "unknown"
	}
	return c.mission
}

// Combine runs a Combiner with the canonical renames and no logging.
func Combine(candidates, state *frame.Frame) (*frame.Frame, error) {
	return NewCombiner(nil, nil).Combine(candidates, state)
}

// splitEigenvector expands a list-typed eigenvector column into its RTN
// components when they are not already present.
func splitEigenvector(f *frame.Frame) (*frame.Frame, error) {
	c, ok := f.Column(ColEigenvector)
	if !ok || c.Kind() != frame.KindList || f.Has(MajorEigenvector[0]) {
		return f, nil
	}
	out, err := vector.Decompose(f, ColEigenvector, ColEigenvector, rtn...)
	if err != nil {
		return nil, err
	}
	return out.Drop(ColEigenvector), nil
}

func checkCandidates(f *frame.Frame) error {
	const table = "candidates"
	for _, col := range []string{ColTime, ColTStart, ColTStop} {
		if err := f.RequireKind(table, col, frame.KindTime); err != nil {
			return err
		}
	}
	return f.RequireNumeric(table, append([]string{ColDStar}, MajorEigenvector...)...)
}

func checkState(f *frame.Frame) error {
	const table = "state"
	if err := f.RequireKind(table, ColTime, frame.KindTime); err != nil {
		return err
	}
	return f.RequireNumeric(table, append([]string{ColSpeed, ColDensity}, SolarWindVelocity...)...)
}

// eventDuration returns d_tstop - d_tstart as a Duration column and as float
// seconds.
func eventDuration(df *frame.Frame) (*frame.Series, *frame.Series) {
	tstart, _ := df.Column(ColTStart)
	tstop, _ := df.Column(ColTStop)
	n := df.Len()
	durs := make([]time.Duration, n)
	secs := make([]float64, n)
	valid := make([]bool, n)
	nulls := false
	for i := 0; i < n; i++ {
		a, okA := tstart.Time(i)
		b, okB := tstop.Time(i)
		if !okA || !okB {
			secs[i] = math.NaN()
			nulls = true
			continue
		}
		durs[i] = b.Sub(a)
		secs[i] = durs[i].Seconds()
		valid[i] = true
	}
	d := frame.NewDuration(ColDuration, durs)
	s := frame.NewFloat64("duration_s", secs)
	if nulls {
		d = d.WithNulls(valid)
		s = s.WithNulls(valid)
	}
	return d, s
}

// alfvenNormalized divides j0 by the Alfvén current density e·n·v_A when the
// field magnitude is known; otherwise the column is entirely null.
func alfvenNormalized(df *frame.Frame, j0, density *frame.Series) (*frame.Series, error) {
	bmag, ok := df.Column(ColBMag)
	if !ok || !bmag.Kind().IsNumeric() {
		return frame.NewNull(ColJ0Norm, frame.KindFloat64, df.Len()), nil
	}
	ja, err := frame.Map2("j_alfven", bmag, density, physics.AlfvenCurrentDensity)
	if err != nil {
		return nil, err
	}
	return frame.Map2(ColJ0Norm, j0, ja, func(j, a float64) float64 { return j / a })
}

// countNonFinite counts null, NaN and infinite values per column.
func countNonFinite(f *frame.Frame, cols []string) map[string]int {
	out := make(map[string]int, len(cols))
	for _, name := range cols {
		c, ok := f.Column(name)
		if !ok {
			continue
		}
		n := 0
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Float(i)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				n++
			}
		}
		out[name] = n
	}
	return out
}
