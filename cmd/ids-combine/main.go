// ids-combine - Enrich one mission's discontinuity candidates with plasma state
//
// Reads a candidate table (parquet, CSV or CSV.gz), joins every candidate with
// the nearest preceding plasma state sample and writes the combined table
// with thickness, current density and their normalized forms.
//
// State comes from a prepared file (-state) or a ClickHouse table written by
// state-prep (-state-table).
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ids-combine ./cmd/ids-combine

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ids-finder/internal/common"
	"github.com/KI7MT/ids-finder/internal/features"
	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/metrics"
	"github.com/KI7MT/ids-finder/internal/mission"
	"github.com/KI7MT/ids-finder/internal/solarwind"
	"github.com/KI7MT/ids-finder/internal/store"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	missionName := flag.String("mission", "", "Mission label (see -list)")
	candidates := flag.String("candidates", "", "Candidate table (.parquet, .csv, .csv.gz)")
	stateFile := flag.String("state", "", "Plasma state table file")
	stateTable := flag.String("state-table", "", "ClickHouse state table (db.table), used when -state is empty")
	lookback := flag.Duration("lookback", 24*time.Hour, "State window before the first candidate when reading from ClickHouse")
	out := flag.String("out", "", "Output file (default: <data-dir>/catalog/<mission>_combined.parquet)")
	mappings := flag.String("mappings", cfg.MappingFile, "Mission mapping YAML (default: embedded)")
	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	list := flag.Bool("list", false, "List known missions and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ids-combine v%s - Discontinuity Candidate Combiner\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -mission LABEL -candidates FILE (-state FILE | -state-table DB.TABLE) [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Joins candidates with preceding plasma state and derives normalized features.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := common.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()
	log := logger.Sugar()

	table, err := mission.Load(*mappings)
	if err != nil {
		log.Fatalf("Mission mappings: %v", err)
	}
	if *list {
		for _, name := range table.Names() {
			m, _ := table.Lookup(name)
			fmt.Printf("%-8s %s\n", name, m.Description)
		}
		return
	}
	if *missionName == "" || *candidates == "" || (*stateFile == "" && *stateTable == "") {
		flag.Usage()
		os.Exit(2)
	}
	m, err := table.Lookup(*missionName)
	if err != nil {
		log.Fatal(err)
	}
	if *out == "" {
		*out = filepath.Join(cfg.CatalogDir(), m.Name+"_combined.parquet")
	}

	log.Info("=========================================================")
	log.Infof("IDS Combine v%s", Version)
	log.Info("=========================================================")
	log.Infof("Mission:    %s (%s)", m.Name, m.Description)
	log.Infof("Candidates: %s", *candidates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("Shutdown requested...")
		cancel()
	}()

	stats := common.NewStats()

	cands, err := store.ReadFile(*candidates, logger)
	if err != nil {
		log.Fatalf("Read candidates: %v", err)
	}
	stats.AddRead(cands.Len())

	var state *frame.Frame
	if *stateFile != "" {
		log.Infof("State:      %s", *stateFile)
		state, err = store.ReadFile(*stateFile, logger)
	} else {
		log.Infof("State:      clickhouse %s/%s", *chHost, *stateTable)
		state, err = loadState(ctx, cfg, *chHost, *chDB, *stateTable, cands, *lookback, logger)
	}
	if err != nil {
		log.Fatalf("Read state: %v", err)
	}
	stats.AddRead(state.Len())

	if state, err = state.Rename(m.State); err != nil {
		log.Fatal(err)
	}
	state, err = solarwind.Prepare(state, solarwind.Options{
		FlowAngles: m.FlowAngles && state.Has(solarwind.ColTheta),
	}, logger)
	if err != nil {
		log.Fatalf("Prepare state: %v", err)
	}

	combined, err := features.NewCombiner(m, logger).Combine(cands, state)
	if err != nil {
		log.Fatalf("Combine: %v", err)
	}
	if err := ctx.Err(); err != nil {
		log.Fatal(err)
	}

	meta := map[string]string{
		"ids.mission":  m.Name,
		"ids.producer": "ids-combine " + Version,
	}
	if err := store.WriteFile(*out, combined, meta); err != nil {
		log.Fatalf("Write %s: %v", *out, err)
	}
	stats.AddWritten(combined.Len(), fileSize(*out))
	log.Infof("Wrote %d candidates to %s", combined.Len(), *out)

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile); err != nil {
			log.Warnf("Metrics: %v", err)
		}
	}

	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	log.Info(stats.Summary())
	stats.Log(logger)
}

// loadState selects the state rows that can precede the candidates.
func loadState(ctx context.Context, cfg *common.Config, addr, db, tbl string, cands *frame.Frame, lookback time.Duration, logger *zap.Logger) (*frame.Frame, error) {
	conn, err := solarwind.Open(ctx, addr, db, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var start, end time.Time
	if first, last, ok := timeBounds(cands); ok {
		start, end = first.Add(-lookback), last.Add(time.Nanosecond)
	}
	logger.Debug("state window", zap.Time("start", start), zap.Time("end", end))
	return solarwind.NewClickHouseSource(conn, tbl).Load(ctx, start, end)
}

func timeBounds(f *frame.Frame) (first, last time.Time, ok bool) {
	c, found := f.Column(features.ColTime)
	if !found || c.Kind() != frame.KindTime {
		return first, last, false
	}
	for i := 0; i < c.Len(); i++ {
		t, valid := c.Time(i)
		if !valid {
			continue
		}
		if !ok || t.Before(first) {
			first = t
		}
		if !ok || t.After(last) {
			last = t
		}
		ok = true
	}
	return first, last, ok
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
