// Package solarwind prepares plasma state tables for the candidate combiner:
// ordering and de-duplication, OMNI flow-angle conversion, speed derivation,
// resampling, and loading state rows from ClickHouse.
package solarwind

import (
	"time"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// Record is one plasma state sample as stored in ClickHouse.
type Record struct {
	Time           time.Time `ch:"time"`
	VelR           *float64  `ch:"sw_vel_r"`   // km/s
	VelT           *float64  `ch:"sw_vel_t"`   // km/s
	VelN           *float64  `ch:"sw_vel_n"`   // km/s
	Speed          *float64  `ch:"sw_speed"`   // km/s
	Density        *float64  `ch:"sw_density"` // cm⁻³
	RadialDistance *float64  `ch:"radial_distance"`
}

// SchemaVersion is the current state table schema version.
const SchemaVersion = 1

// Columns lists the state table columns in storage order.
var Columns = []string{"time", "sw_vel_r", "sw_vel_t", "sw_vel_n", "sw_speed", "sw_density", "radial_distance"}

// ToFrame converts records to a state frame with columns in Columns order.
// Nil fields become nulls.
func ToFrame(recs []Record) (*frame.Frame, error) {
	ts := make([]time.Time, len(recs))
	fields := make([][]any, len(Columns)-1)
	for j := range fields {
		fields[j] = make([]any, len(recs))
	}
	for i, r := range recs {
		ts[i] = r.Time.UTC()
		for j, p := range []*float64{r.VelR, r.VelT, r.VelN, r.Speed, r.Density, r.RadialDistance} {
			if p != nil {
				fields[j][i] = *p
			}
		}
	}
	cols := map[string]any{"time": ts}
	for j, name := range Columns[1:] {
		cols[name] = fields[j]
	}
	f, err := frame.From(cols)
	if err != nil {
		return nil, err
	}
	return f.Select(Columns...)
}
