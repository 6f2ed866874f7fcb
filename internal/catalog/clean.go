// Package catalog turns per-mission enriched candidate tables into one
// analysis-ready catalog: L1 quality filtering per mission, then schema
// harmonization across missions.
package catalog

import (
	"fmt"
	"math"
	"time"

	"github.com/KI7MT/ids-finder/internal/features"
	"github.com/KI7MT/ids-finder/internal/frame"
)

// Log-scaled columns added by Clean.
const (
	ColJ0NormLog  = "j0_norm_log"
	ColLMNNormLog = "L_mn_norm_log"
)

// QualityFilter holds the L1 thresholds. A row is kept only when every
// predicate holds; null or NaN values never satisfy a predicate.
type QualityFilter struct {
	MaxDStar    float64       // d_star < MaxDStar
	MinVMN      float64       // v_mn > MinVMN, km/s
	MaxDuration time.Duration // duration < MaxDuration
}

// DefaultFilter excludes extreme d_star, slow boundary-normal flow and events
// longer than a minute.
var DefaultFilter = QualityFilter{
	MaxDStar:    100,
	MinVMN:      10,
	MaxDuration: 60 * time.Second,
}

// Report summarizes one Clean pass.
type Report struct {
	Mission  string
	Input    int
	Retained int
	Ratio    float64 // Retained / Input, 0 for empty input
}

func (r Report) String() string {
	return fmt.Sprintf("candidates_l1: %d, with effective ratio: %.2f%%", r.Retained, r.Ratio*100)
}

// Clean applies the quality filter, widens float columns to Float64 and adds
// log10 columns for j0_norm and L_mn_norm. Clean is idempotent.
func Clean(f *frame.Frame, q QualityFilter) (*frame.Frame, Report, error) {
	const table = "events"
	rep := Report{Input: f.Len()}

	if err := f.RequireNumeric(table, features.ColDStar, features.ColVMN, features.ColJ0Norm, features.ColLMNNorm); err != nil {
		return nil, rep, err
	}
	if err := f.RequireKind(table, features.ColDuration, frame.KindDuration); err != nil {
		return nil, rep, err
	}
	dstar, _ := f.Column(features.ColDStar)
	vmn, _ := f.Column(features.ColVMN)
	dur, _ := f.Column(features.ColDuration)

	mask := make([]bool, f.Len())
	for i := range mask {
		d, okD := dstar.Float(i)
		v, okV := vmn.Float(i)
		t, okT := dur.Duration(i)
		mask[i] = okD && okV && okT && d < q.MaxDStar && v > q.MinVMN && t < q.MaxDuration
	}
	out, err := f.Filter(mask)
	if err != nil {
		return nil, rep, err
	}
	if out, err = out.CastFloats(frame.KindFloat64); err != nil {
		return nil, rep, err
	}

	j0n, _ := out.Column(features.ColJ0Norm)
	lmn, _ := out.Column(features.ColLMNNorm)
	j0Log, err := frame.Map(ColJ0NormLog, j0n, math.Log10)
	if err != nil {
		return nil, rep, err
	}
	lmnLog, err := frame.Map(ColLMNNormLog, lmn, math.Log10)
	if err != nil {
		return nil, rep, err
	}
	if out, err = out.WithColumns(j0Log, lmnLog); err != nil {
		return nil, rep, err
	}

	rep.Retained = out.Len()
	if rep.Input > 0 {
		rep.Ratio = float64(rep.Retained) / float64(rep.Input)
	}
	return out, rep, nil
}
