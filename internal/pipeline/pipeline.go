// Package pipeline runs one diagnosis pass over a snapshot.
//
//	load → fuse → classify + synthesize → store
//
// Load failures are fatal. Fusion and diagnosis are sharded by order across
// Options.Workers goroutines; no order's derivation reads another's, so the
// only coordination is the final wait per stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rootcause/internal/dataset"
	"rootcause/internal/diagnose"
	"rootcause/internal/fusion"
	"rootcause/internal/metrics"
	"rootcause/internal/shard"
	"rootcause/internal/store"
)

// Stage names used in logs and the stage duration histogram.
const (
	StageLoad     = "load"
	StageFuse     = "fuse"
	StageDiagnose = "diagnose"
)

// Options configures a run. Zero values are usable.
type Options struct {
	Workers int
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	// Now stamps the run; defaults to time.Now.
	Now func() time.Time
}

// Result is everything a run produces.
type Result struct {
	RunID       string
	GeneratedAt time.Time
	Fingerprint string
	Store       *store.Store
	Counts      store.Counts
	Fusion      fusion.Stats
	Warnings    []string
	// Input is the loaded snapshot; the CLI derives entity vocabularies
	// from it.
	Input *dataset.Set
}

// Run loads the snapshot and builds the fused order store.
func Run(ctx context.Context, loader dataset.Loader, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	workers := max(opts.Workers, 1)

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	// Step 1: load all tables.
	start := time.Now()
	set, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	opts.Metrics.ObserveStage(StageLoad, start)
	for _, w := range set.Warnings {
		logger.Warn("dataset: " + w)
	}
	logger.Info("pipeline: loaded",
		zap.Int("orders", len(set.Orders)),
		zap.Duration("took", time.Since(start)))

	// Step 2: fuse side tables onto orders.
	start = time.Now()
	records, stats, err := fusion.NewEngine(logger, workers).Fuse(ctx, set)
	if err != nil {
		return nil, err
	}
	opts.Metrics.ObserveStage(StageFuse, start)

	// Step 3: derive flags and reasons.
	start = time.Now()
	if err := Diagnose(ctx, records, workers); err != nil {
		return nil, err
	}
	opts.Metrics.ObserveStage(StageDiagnose, start)

	st := store.New(records)
	counts := store.Count(records)
	record(opts.Metrics, stats, counts)

	logger.Info("pipeline: diagnosed",
		zap.Int("orders", counts.Total),
		zap.Int("late", counts.Late),
		zap.Int("failed", counts.Failed),
		zap.Duration("took", time.Since(start)))

	return &Result{
		RunID:       runID,
		GeneratedAt: now().UTC(),
		Fingerprint: set.Fingerprint,
		Store:       st,
		Counts:      counts,
		Fusion:      stats,
		Warnings:    set.Warnings,
		Input:       set,
	}, nil
}

// Diagnose applies the classifier and reason synthesizer to every record.
func Diagnose(ctx context.Context, records []*fusion.Record, workers int) error {
	err := shard.Each(ctx, len(records), workers, func(ctx context.Context, r shard.Range) error {
		for i := r.Lo; i < r.Hi; i++ {
			if err := diagnose.Apply(records[i]); err != nil {
				return err
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("diagnose orders: %w", err)
	}
	return nil
}

func record(m *metrics.Recorder, stats fusion.Stats, counts store.Counts) {
	if m == nil {
		return
	}
	m.OrdersFused.Add(float64(stats.Orders))
	for table, n := range stats.Matches {
		m.SideMatches.WithLabelValues(table).Add(float64(n))
	}
	m.OrdersLate.Set(float64(counts.Late))
	m.OrdersFailed.Set(float64(counts.Failed))
}
