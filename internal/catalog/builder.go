package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KI7MT/ids-finder/internal/frame"
	"github.com/KI7MT/ids-finder/internal/metrics"
)

// Catalog is the output of one Build.
type Catalog struct {
	RunID   string
	Frame   *frame.Frame
	Reports []Report // in mission label order
}

// Builder runs L1 cleaning for every mission and harmonizes the results.
type Builder struct {
	filter QualityFilter
	logger *zap.Logger
}

// NewBuilder returns a Builder using DefaultFilter.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{filter: DefaultFilter, logger: logger}
}

// WithFilter returns a copy of b that applies q.
func (b *Builder) WithFilter(q QualityFilter) *Builder {
	c := *b
	c.filter = q
	return &c
}

// Build cleans each mission table concurrently, then harmonizes. The first
// failing mission cancels the rest.
func (b *Builder) Build(ctx context.Context, tables map[string]*frame.Frame) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	runID := uuid.New().String()
	log := b.logger.With(zap.String("run_id", runID))

	labels := Labels(tables)
	cleaned := make([]*frame.Frame, len(labels))
	reports := make([]Report, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	for i, label := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			out, rep, err := Clean(tables[label], b.filter)
			if err != nil {
				return fmt.Errorf("clean %s: %w", label, err)
			}
			rep.Mission = label
			metrics.ObserveClean(label, rep.Input, rep.Retained, time.Since(start))
			log.Info(rep.String(),
				zap.String("mission", label),
				zap.Int("input", rep.Input),
				zap.Int("retained", rep.Retained),
			)
			cleaned[i] = out
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	byLabel := make(map[string]*frame.Frame, len(labels))
	for i, label := range labels {
		byLabel[label] = cleaned[i]
	}
	out, err := Harmonize(byLabel)
	if err != nil {
		return nil, fmt.Errorf("harmonize: %w", err)
	}
	metrics.ObserveHarmonize(out.Len(), time.Since(start))
	log.Info("catalog built",
		zap.Int("missions", len(labels)),
		zap.Int("rows", out.Len()),
		zap.Int("columns", out.Width()),
	)
	return &Catalog{RunID: runID, Frame: out, Reports: reports}, nil
}
