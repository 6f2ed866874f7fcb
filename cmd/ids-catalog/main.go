// ids-catalog - Build the cross-mission discontinuity catalog
//
// Takes combined candidate tables, one per mission, as SAT=path pairs:
//
//	ids-catalog -out catalog.parquet JNO=jno.parquet STA=sta.parquet THB_sw=thb.parquet
//
// Each table is L1-cleaned (d_star, v_mn and duration thresholds, log10 of
// the normalized columns), then all tables are stacked with a "sat" label,
// radial_distance defaulting to 1 AU and the integer r_bin.
//
// With -ch-table the catalog is also inserted into ClickHouse over the
// native protocol.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ids-catalog ./cmd/ids-catalog

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/KI7MT/ids-finder/internal/catalog"
	"github.com/KI7MT/ids-finder/internal/common"
	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/metrics"
	"github.com/KI7MT/ids-finder/internal/store"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	out := flag.String("out", filepath.Join(cfg.CatalogDir(), "ids_catalog.parquet"), "Output catalog file (.parquet, .csv, .csv.gz)")
	maxDStar := flag.Float64("max-d-star", catalog.DefaultFilter.MaxDStar, "L1: keep d_star below this")
	minVMN := flag.Float64("min-v-mn", catalog.DefaultFilter.MinVMN, "L1: keep v_mn above this (km/s)")
	maxDuration := flag.Duration("max-duration", catalog.DefaultFilter.MaxDuration, "L1: keep durations below this")
	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "", "ClickHouse table to insert the catalog into (empty: skip)")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ids-catalog v%s - Cross-Mission Catalog Builder\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] SAT=path [SAT=path...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Cleans combined candidate tables and harmonizes them into one catalog.\n\n")
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

	inputs, err := parseInputs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	log.Info("=========================================================")
	log.Infof("IDS Catalog v%s", Version)
	log.Info("=========================================================")

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
	tables := make(map[string]*frame.Frame, len(inputs))
	for sat, path := range inputs {
		f, err := store.ReadFile(path, logger)
		if err != nil {
			log.Fatalf("[%s] %v", sat, err)
		}
		log.Infof("[%s] %d candidates from %s", sat, f.Len(), filepath.Base(path))
		stats.AddRead(f.Len())
		tables[sat] = f
	}

	builder := catalog.NewBuilder(logger).WithFilter(catalog.QualityFilter{
		MaxDStar:    *maxDStar,
		MinVMN:      *minVMN,
		MaxDuration: *maxDuration,
	})
	cat, err := builder.Build(ctx, tables)
	if err != nil {
		log.Fatalf("Build catalog: %v", err)
	}

	summary, err := catalog.Summarize(cat.Frame)
	if err != nil {
		log.Fatalf("Summarize: %v", err)
	}
	for _, s := range summary {
		log.Infof("[%s] %-20s n=%-7d mean=%-10.4g std=%-10.4g median=%.4g",
			s.Mission, s.Column, s.Count, s.Mean, s.StdDev, s.Median)
	}

	meta := map[string]string{
		"ids.run_id":   cat.RunID,
		"ids.missions": strings.Join(catalog.Labels(tables), ","),
		"ids.producer": "ids-catalog " + Version,
	}
	if err := store.WriteFile(*out, cat.Frame, meta); err != nil {
		log.Fatalf("Write %s: %v", *out, err)
	}
	stats.AddWritten(cat.Frame.Len(), fileSize(*out))
	log.Infof("Wrote %d rows to %s", cat.Frame.Len(), *out)

	if *chTable != "" {
		if err := insert(ctx, cfg, *chHost, *chDB, *chTable, cat.Frame); err != nil {
			log.Fatalf("ClickHouse: %v", err)
		}
		stats.AddWritten(cat.Frame.Len(), 0)
		log.Infof("Inserted %d rows into %s.%s", cat.Frame.Len(), *chDB, *chTable)
	}

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile); err != nil {
			log.Warnf("Metrics: %v", err)
		}
	}

	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	log.Infof("Run ID: %s", cat.RunID)
	log.Info(stats.Summary())
	stats.Log(logger)
}

// parseInputs splits SAT=path arguments. Labels must be unique.
func parseInputs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no input tables")
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		sat, path, ok := strings.Cut(arg, "=")
		if !ok || sat == "" || path == "" {
			return nil, fmt.Errorf("input %q: want SAT=path", arg)
		}
		if _, dup := out[sat]; dup {
			return nil, fmt.Errorf("input %q: duplicate label %s", arg, sat)
		}
		out[sat] = path
	}
	return out, nil
}

func insert(ctx context.Context, cfg *common.Config, addr, db, table string, f *frame.Frame) error {
	conn, err := store.DialClickHouse(ctx, addr, db, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := store.NewClickHouseWriter(conn, db+"."+table, catalog.ColSat, "time")
	if err := w.CreateTable(ctx, f); err != nil {
		return err
	}
	_, err = w.Insert(ctx, f)
	return err
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
