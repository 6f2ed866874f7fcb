// state-prep - Prepare plasma state tables for ids-combine
//
// Reads a raw plasma state export, renames columns to the canonical
// sw_* names from the mission mapping, sorts and de-duplicates by time,
// converts OMNI flow angles to a velocity vector, resamples to the mission
// cadence and writes one parquet file per year:
//
//	<out-dir>/<mission>/state_<year>.parquet
//
// With -ch-table the prepared rows are also inserted into ClickHouse, where
// ids-combine -state-table can read them back.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/state-prep ./cmd/state-prep

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/KI7MT/ids-finder/internal/common"
	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/mission"
	"github.com/KI7MT/ids-finder/internal/solarwind"
	"github.com/KI7MT/ids-finder/internal/store"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	missionName := flag.String("mission", "", "Mission label")
	in := flag.String("in", "", "Raw state table (.parquet, .csv, .csv.gz)")
	every := flag.Duration("every", -1, "Resample cadence (default: mission cadence, 0 disables)")
	flowAngles := flag.String("flow-angles", "auto", "Derive velocity from OMNI flow angles: auto, true, false")
	outDir := flag.String("out-dir", cfg.StateDir(), "Output directory")
	mappings := flag.String("mappings", cfg.MappingFile, "Mission mapping YAML (default: embedded)")
	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "", "ClickHouse table to insert prepared state into (empty: skip)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "state-prep v%s - Plasma State Preparation\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -mission LABEL -in FILE [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Normalizes a plasma state export and writes per-year parquet files.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *missionName == "" || *in == "" {
		flag.Usage()
		os.Exit(2)
	}

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
	m, err := table.Lookup(*missionName)
	if err != nil {
		log.Fatal(err)
	}

	opts := solarwind.Options{Every: time.Duration(m.Cadence), FlowAngles: m.FlowAngles}
	if *every >= 0 {
		opts.Every = *every
	}
	if *flowAngles != "auto" {
		if opts.FlowAngles, err = strconv.ParseBool(*flowAngles); err != nil {
			log.Fatalf("-flow-angles: %v", err)
		}
	}

	log.Info("=========================================================")
	log.Infof("State Prep v%s", Version)
	log.Info("=========================================================")
	log.Infof("Mission:     %s (%s)", m.Name, m.Description)
	log.Infof("Input:       %s", *in)
	log.Infof("Cadence:     %v", opts.Every)
	log.Infof("Flow angles: %v", opts.FlowAngles)

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

	raw, err := store.ReadFile(*in, logger)
	if err != nil {
		log.Fatalf("Read: %v", err)
	}
	stats.AddRead(raw.Len())

	renamed, err := raw.Rename(m.State)
	if err != nil {
		log.Fatal(err)
	}
	state, err := solarwind.Prepare(renamed, opts, logger)
	if err != nil {
		log.Fatalf("Prepare: %v", err)
	}
	log.Infof("Prepared %d rows (from %d)", state.Len(), raw.Len())

	parts, err := state.PartitionByYear("time")
	if err != nil {
		log.Fatalf("Partition: %v", err)
	}
	meta := map[string]string{
		"ids.mission":              m.Name,
		"ids.state_schema_version": strconv.Itoa(solarwind.SchemaVersion),
		"ids.producer":             "state-prep " + Version,
	}
	for _, year := range frame.Years(parts) {
		if err := ctx.Err(); err != nil {
			log.Fatal(err)
		}
		path := filepath.Join(*outDir, m.Name, fmt.Sprintf("state_%d.parquet", year))
		if err := store.WriteFile(path, parts[year], meta); err != nil {
			log.Fatalf("Write %s: %v", path, err)
		}
		stats.AddWritten(parts[year].Len(), fileSize(path))
		log.Infof("[%d] %d rows -> %s", year, parts[year].Len(), path)
	}

	if *chTable != "" {
		n, err := insert(ctx, cfg, *chHost, *chDB, *chTable, state)
		if err != nil {
			log.Fatalf("ClickHouse: %v", err)
		}
		stats.AddWritten(n, 0)
		log.Infof("Inserted %d rows into %s.%s", n, *chDB, *chTable)
	}

	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	log.Info(stats.Summary())
	stats.Log(logger)
}

// insert writes the columns solarwind.ClickHouseSource reads back, plus any
// extra state columns. Floats are widened to Float64 to match Record.
func insert(ctx context.Context, cfg *common.Config, addr, db, table string, f *frame.Frame) (int, error) {
	for _, name := range solarwind.Columns {
		if !f.Has(name) {
			return 0, fmt.Errorf("state column %q missing", name)
		}
	}
	f, err := f.CastFloats(frame.KindFloat64)
	if err != nil {
		return 0, err
	}
	conn, err := store.DialClickHouse(ctx, addr, db, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	w := store.NewClickHouseWriter(conn, db+"."+table, "time")
	if err := w.CreateTable(ctx, f); err != nil {
		return 0, err
	}
	return w.Insert(ctx, f)
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
