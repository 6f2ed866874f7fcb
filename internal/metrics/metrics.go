// Package metrics exposes Prometheus collectors for the combine, clean and
// harmonize stages.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ids_finder"

const (
	// StageCombine labels feature combination timings.
	StageCombine = "combine"
	// StageClean labels L1 quality filtering timings.
	StageClean = "clean"
	// StageHarmonize labels cross-mission concatenation timings.
	StageHarmonize = "harmonize"
)

var (
	candidatesCombinedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_combined_total",
			Help:      "Candidates enriched with plasma state, partitioned by mission.",
		},
		[]string{"mission"},
	)

	nonFiniteValuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonfinite_values_total",
			Help:      "Derived values that are NaN, infinite or null, by mission and column.",
		},
		[]string{"mission", "column"},
	)

	l1RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "l1_rows_total",
			Help:      "Rows seen by the L1 quality filter, partitioned by mission and outcome.",
		},
		[]string{"mission", "outcome"},
	)

	l1RetentionRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l1_retention_ratio",
			Help:      "Fraction of candidates retained by the most recent L1 pass.",
		},
		[]string{"mission"},
	)

	catalogRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_rows",
			Help:      "Rows in the most recently built catalog.",
		},
	)

	stageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		candidatesCombinedTotal,
		nonFiniteValuesTotal,
		l1RowsTotal,
		l1RetentionRatio,
		catalogRows,
		stageSeconds,
	}
}

// Register attaches the pipeline collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	for _, collector := range collectors() {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// WriteTextfile writes the current collector values in the node_exporter
// textfile format. Batch CLIs use this instead of serving /metrics.
func WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveCombine records a completed feature combination.
func ObserveCombine(mission string, rows int, nonFinite map[string]int, elapsed time.Duration) {
	candidatesCombinedTotal.WithLabelValues(mission).Add(float64(rows))
	for col, n := range nonFinite {
		if n > 0 {
			nonFiniteValuesTotal.WithLabelValues(mission, col).Add(float64(n))
		}
	}
	observeStage(StageCombine, elapsed)
}

// ObserveClean records one L1 filtering pass.
func ObserveClean(mission string, input, retained int, elapsed time.Duration) {
	l1RowsTotal.WithLabelValues(mission, "retained").Add(float64(retained))
	l1RowsTotal.WithLabelValues(mission, "dropped").Add(float64(input - retained))
	if input > 0 {
		l1RetentionRatio.WithLabelValues(mission).Set(float64(retained) / float64(input))
	}
	observeStage(StageClean, elapsed)
}

// ObserveHarmonize records the size of a harmonized catalog.
func ObserveHarmonize(rows int, elapsed time.Duration) {
	catalogRows.Set(float64(rows))
	observeStage(StageHarmonize, elapsed)
}

func observeStage(stage string, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	stageSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}
