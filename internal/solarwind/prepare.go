package solarwind

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/vector"
)

// OMNI flow-angle columns, in degrees.
const (
	ColTheta = "sw_vel_theta"
	ColPhi   = "sw_vel_phi"
)

var velocity = vector.Components("sw_vel", "r", "t", "n")

// Options controls Prepare.
type Options struct {
	// Every resamples to this cadence when positive.
	Every time.Duration
	// FlowAngles derives the velocity vector from sw_speed and the OMNI
	// flow latitude/longitude.
	FlowAngles bool
}

// Prepare turns a raw state table into one the combiner accepts: sorted by
// time with unique timestamps, velocity components present, sw_speed present
// and radial_distance present (null when unknown).
func Prepare(f *frame.Frame, opts Options, logger *zap.Logger) (*frame.Frame, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := f.RequireKind("state", "time", frame.KindTime); err != nil {
		return nil, err
	}
	in := f.Len()
	out, err := f.SortBy("time")
	if err != nil {
		return nil, err
	}
	if out, err = out.UniqueBy("time"); err != nil {
		return nil, err
	}
	if dups := in - out.Len(); dups > 0 {
		logger.Debug("dropped duplicate state timestamps", zap.Int("count", dups))
	}

	if opts.FlowAngles {
		if out, err = FlowToVector(out); err != nil {
			return nil, err
		}
	}
	if !out.Has("sw_speed") {
		v, err := vector.FromFrame(out, velocity, []string{"r", "t", "n"})
		if err != nil {
			return nil, err
		}
		speed, err := vector.Norm("sw_speed", v)
		if err != nil {
			return nil, err
		}
		if out, err = out.WithColumns(speed); err != nil {
			return nil, err
		}
	}
	if opts.Every > 0 {
		if out, err = out.Resample("time", opts.Every); err != nil {
			return nil, err
		}
	}
	if !out.Has("radial_distance") {
		if out, err = out.WithColumns(frame.NewNull("radial_distance", frame.KindFloat64, out.Len())); err != nil {
			return nil, err
		}
	}
	logger.Debug("prepared state", zap.Int("input", in), zap.Int("rows", out.Len()))
	return out, nil
}

// FlowToVector converts OMNI flow speed and angles (degrees) into velocity
// components: x = -V cosθ cosφ, y = V cosθ sinφ, z = V sinθ. The angle
// columns are dropped.
func FlowToVector(f *frame.Frame) (*frame.Frame, error) {
	if err := f.RequireNumeric("state", "sw_speed", ColTheta, ColPhi); err != nil {
		return nil, err
	}
	speed, _ := f.Column("sw_speed")
	theta, _ := f.Column(ColTheta)
	phi, _ := f.Column(ColPhi)

	n := f.Len()
	comps := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	valid := make([]bool, n)
	nulls := false
	for i := 0; i < n; i++ {
		v, ok1 := speed.Float(i)
		th, ok2 := theta.Float(i)
		ph, ok3 := phi.Float(i)
		if !ok1 || !ok2 || !ok3 {
			nulls = true
			comps[0][i], comps[1][i], comps[2][i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		valid[i] = true
		th, ph = th*math.Pi/180, ph*math.Pi/180
		comps[0][i] = -v * math.Cos(th) * math.Cos(ph)
		comps[1][i] = v * math.Cos(th) * math.Sin(ph)
		comps[2][i] = v * math.Sin(th)
	}
	cols := make([]*frame.Series, 3)
	for j, name := range velocity {
		cols[j] = frame.NewFloat64(name, comps[j])
		if nulls {
			cols[j] = cols[j].WithNulls(valid)
		}
	}
	out, err := f.WithColumns(cols...)
	if err != nil {
		return nil, err
	}
	return out.Drop(ColTheta, ColPhi), nil
}
