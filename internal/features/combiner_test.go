package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/mission"
)

var epoch = time.Date(2011, 8, 1, 12, 0, 0, 0, time.UTC)

func sec(s float64) time.Time { return epoch.Add(time.Duration(s * float64(time.Second))) }

type candidate struct {
	t, start, stop float64
	dstar          float64
	l              [3]float64
}

func candidatesFrame(rows ...candidate) *frame.Frame {
	n := len(rows)
	ts, starts, stops := make([]time.Time, n), make([]time.Time, n), make([]time.Time, n)
	dstar, lx, ly, lz := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, r := range rows {
		ts[i], starts[i], stops[i] = sec(r.t), sec(r.start), sec(r.stop)
		dstar[i] = r.dstar
		lx[i], ly[i], lz[i] = r.l[0], r.l[1], r.l[2]
	}
	return frame.MustNew(
		frame.NewTime("time", ts),
		frame.NewTime("d_tstart", starts),
		frame.NewTime("d_tstop", stops),
		frame.NewFloat64("d_star", dstar),
		frame.NewFloat64("Vl_x", lx),
		frame.NewFloat64("Vl_y", ly),
		frame.NewFloat64("Vl_z", lz),
	)
}

type stateRow struct {
	t       float64
	v       [3]float64
	speed   float64
	density float64
}

func stateFrame(rows ...stateRow) *frame.Frame {
	n := len(rows)
	ts := make([]time.Time, n)
	vr, vt, vn := make([]float64, n), make([]float64, n), make([]float64, n)
	speed, density := make([]float64, n), make([]float64, n)
	for i, r := range rows {
		ts[i] = sec(r.t)
		vr[i], vt[i], vn[i] = r.v[0], r.v[1], r.v[2]
		speed[i], density[i] = r.speed, r.density
	}
	return frame.MustNew(
		frame.NewTime("time", ts),
		frame.NewFloat64("sw_vel_r", vr),
		frame.NewFloat64("sw_vel_t", vt),
		frame.NewFloat64("sw_vel_n", vn),
		frame.NewFloat64("sw_speed", speed),
		frame.NewFloat64("sw_density", density),
	)
}

func value(t *testing.T, f *frame.Frame, col string, row int) float64 {
	t.Helper()
	c, ok := f.Column(col)
	require.True(t, ok, "column %s", col)
	v, ok := c.Float(row)
	require.True(t, ok, "%s[%d] is null", col, row)
	return v
}

func TestCombineEndToEnd(t *testing.T) {
	cands := candidatesFrame(candidate{t: 0, start: -2, stop: 2, dstar: 0.5, l: [3]float64{1, 0, 0}})
	state := stateFrame(stateRow{t: -1, v: [3]float64{400, 0, 0}, speed: 400, density: 5})

	out, err := Combine(cands, state)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	dur, _ := out.Column("duration")
	d, ok := dur.Duration(0)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, d)

	assert.Equal(t, 400.0, value(t, out, "sw_vel_l", 0))
	assert.Equal(t, 0.0, value(t, out, "sw_vel_mn", 0))
	assert.Equal(t, 0.0, value(t, out, "L_mn", 0))
	j0 := value(t, out, "j0", 0)
	assert.True(t, math.IsInf(j0, 0) || math.IsNaN(j0))
	assert.InEpsilon(t, 101.7, value(t, out, "ion_inertial_length", 0), 0.01)
	assert.Equal(t, 0.0, value(t, out, "L_mn_norm", 0))
	assert.Equal(t, 0.0, value(t, out, "v_mn", 0))

	j0Norm, _ := out.Column("j0_norm")
	assert.True(t, j0Norm.IsNull(0), "no b_mag column")

	for _, col := range []string{"b_vecL_r", "b_vecL_t", "b_vecL_n"} {
		assert.True(t, out.Has(col), col)
	}
	assert.False(t, out.Has("Vl_x"))
}

func TestCombinePreservesRows(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var rows []candidate
	for i := 0; i < 25; i++ {
		ts := rng.Float64() * 1000
		rows = append(rows, candidate{t: ts, start: ts - 1, stop: ts + 1, dstar: 1,
			l: [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}})
	}
	// Candidates before the first state row get nulls, not dropped rows.
	state := stateFrame(
		stateRow{t: 200, v: [3]float64{400, 10, 5}, speed: 400.2, density: 3},
		stateRow{t: 600, v: [3]float64{500, -20, 0}, speed: 500.4, density: 4},
	)
	out, err := Combine(candidatesFrame(rows...), state)
	require.NoError(t, err)
	assert.Equal(t, len(rows), out.Len())

	sorted, err := out.IsSortedBy("time")
	require.NoError(t, err)
	assert.True(t, sorted)
}

func TestCombinePythagorean(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		v := [3]float64{300 + 200*rng.Float64(), 50 * rng.NormFloat64(), 50 * rng.NormFloat64()}
		speed := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		l := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}

		out, err := Combine(
			candidatesFrame(candidate{t: 10, start: 9, stop: 11, dstar: 1, l: l}),
			stateFrame(stateRow{t: 0, v: v, speed: speed, density: 5}),
		)
		require.NoError(t, err)

		vl := value(t, out, "sw_vel_l", 0)
		vmn := value(t, out, "sw_vel_mn", 0)
		assert.InEpsilon(t, speed*speed, vl*vl+vmn*vmn, 1e-9)
	}
}

func TestCombineDegenerateEigenvector(t *testing.T) {
	out, err := Combine(
		candidatesFrame(candidate{t: 10, start: 9, stop: 11, dstar: 1}),
		stateFrame(stateRow{t: 0, v: [3]float64{400, 0, 0}, speed: 400, density: 5}),
	)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(value(t, out, "sw_vel_l", 0)))
	assert.True(t, math.IsNaN(value(t, out, "sw_vel_mn", 0)))
}

func TestCombineNegativeRadicand(t *testing.T) {
	// sw_speed below the L component: no clamping.
	out, err := Combine(
		candidatesFrame(candidate{t: 10, start: 9, stop: 11, dstar: 1, l: [3]float64{1, 0, 0}}),
		stateFrame(stateRow{t: 0, v: [3]float64{400, 0, 0}, speed: 300, density: 5}),
	)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(value(t, out, "sw_vel_mn", 0)))
	assert.True(t, math.IsNaN(value(t, out, "L_mn_norm", 0)))
}

func TestCombineNoPrecedingState(t *testing.T) {
	out, err := Combine(
		candidatesFrame(candidate{t: 0, start: -1, stop: 1, dstar: 1, l: [3]float64{1, 0, 0}}),
		stateFrame(stateRow{t: 5, v: [3]float64{400, 0, 0}, speed: 400, density: 5}),
	)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	for _, col := range []string{"sw_speed", "sw_vel_l", "sw_vel_mn", "j0", "ion_inertial_length"} {
		c, _ := out.Column(col)
		assert.True(t, c.IsNull(0), col)
	}
}

func TestCombineSchemaErrors(t *testing.T) {
	good := stateFrame(stateRow{t: 0, v: [3]float64{400, 0, 0}, speed: 400, density: 5})
	cands := candidatesFrame(candidate{t: 1, start: 0, stop: 2, dstar: 1, l: [3]float64{1, 0, 0}})

	_, err := Combine(cands, good.Drop("sw_density"))
	var se *frame.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sw_density", se.Column)
	assert.Equal(t, "state", se.Table)

	_, err = Combine(cands.Drop("Vl_y"), good)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b_vecL_t", se.Column)
}

func TestCombineNullTimeIsUnsortable(t *testing.T) {
	cands := candidatesFrame(
		candidate{t: 1, start: 0, stop: 2, dstar: 1, l: [3]float64{1, 0, 0}},
		candidate{t: 3, start: 2, stop: 4, dstar: 1, l: [3]float64{1, 0, 0}},
	)
	tc, _ := cands.Column("time")
	cands, err := cands.WithColumns(tc.WithNulls([]bool{true, false}))
	require.NoError(t, err)

	_, err = Combine(cands, stateFrame(stateRow{t: 0, v: [3]float64{400, 0, 0}, speed: 400, density: 5}))
	assert.ErrorIs(t, err, frame.ErrUnsortable)
}

func TestCombinerMissionMapping(t *testing.T) {
	tbl, err := mission.Default()
	require.NoError(t, err)
	jno, err := tbl.Lookup("JNO")
	require.NoError(t, err)

	state := frame.MustNew(
		frame.NewTime("time", []time.Time{sec(0)}),
		frame.NewFloat64("v_x", []float64{400}),
		frame.NewFloat64("v_y", []float64{0}),
		frame.NewFloat64("v_z", []float64{0}),
		frame.NewFloat64("plasma_speed", []float64{400}),
		frame.NewFloat64("plasma_density", []float64{5}),
	)
	cands := candidatesFrame(candidate{t: 1, start: 0, stop: 2, dstar: 1, l: [3]float64{0, 1, 0}})
	cands, err = cands.WithColumns(frame.NewFloat64("b_mag", []float64{5}))
	require.NoError(t, err)

	out, err := NewCombiner(jno, nil).Combine(cands, state)
	require.NoError(t, err)
	assert.Equal(t, 400.0, value(t, out, "v_mn", 0))
	assert.Greater(t, value(t, out, "j0_norm", 0), 0.0)
}

func TestCombineListEigenvector(t *testing.T) {
	cands := frame.MustNew(
		frame.NewTime("time", []time.Time{sec(0), sec(10)}),
		frame.NewTime("d_tstart", []time.Time{sec(-2), sec(9)}),
		frame.NewTime("d_tstop", []time.Time{sec(2), sec(11)}),
		frame.NewFloat64("d_star", []float64{0.5, 0.5}),
		frame.NewList("Vl", [][]float64{{0, 1, 0}, {1}}),
	)
	state := stateFrame(stateRow{t: -1, v: [3]float64{300, 400, 0}, speed: 500, density: 5})

	out, err := Combine(cands, state)
	require.NoError(t, err)
	assert.False(t, out.Has("Vl"))
	assert.False(t, out.Has("b_vecL"))
	assert.Equal(t, 1.0, value(t, out, "b_vecL_t", 0))
	assert.InDelta(t, 400, value(t, out, "sw_vel_l", 0), 1e-9)
	assert.InDelta(t, 300, value(t, out, "sw_vel_mn", 0), 1e-9)

	// A short list leaves the missing components null, and so the projection.
	bn, _ := out.Column("b_vecL_n")
	assert.True(t, bn.IsNull(1))
	vl, _ := out.Column("sw_vel_l")
	assert.True(t, vl.IsNull(1))
}
