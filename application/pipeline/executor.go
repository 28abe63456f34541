// Package pipeline runs a refinement recipe: load the dataset, apply each op
// with a worker pool, export the result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
	"github.com/quench-data/quench/infrastructure/dataset"
	"github.com/quench-data/quench/infrastructure/tracing"
	"github.com/quench-data/quench/internal/config"
)

// Summary reports what a run did.
type Summary struct {
	Loaded   int
	Exported int
	Dropped  int
	OpsRun   int
}

// Executor applies a recipe to a dataset.
type Executor struct {
	recipe   config.Recipe
	registry *op.Registry
	tracer   *tracing.Tracer
	log      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracer enables field-change tracing.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an Executor.
func NewExecutor(recipe config.Recipe, registry *op.Registry, log *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		recipe:   recipe,
		registry: registry,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the recipe.
func (e *Executor) Run(ctx context.Context) (Summary, error) {
	records, err := dataset.Load(e.recipe.DatasetPath)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Loaded: len(records)}
	e.log.Info("loaded dataset", "path", e.recipe.DatasetPath, "records", len(records))

	for _, spec := range e.recipe.Process {
		built, err := e.registry.Build(spec.Name, op.Params(spec.Params))
		if err != nil {
			return summary, err
		}

		before := len(records)
		records, err = e.runOp(ctx, built, records)
		if err != nil {
			return summary, fmt.Errorf("op %s: %w", spec.Name, err)
		}
		summary.OpsRun++
		summary.Dropped += before - len(records)
		e.log.Info("applied op", "op", spec.Name, "records", len(records))
	}

	if err := dataset.Export(e.recipe.ExportPath, records); err != nil {
		return summary, err
	}
	summary.Exported = len(records)
	e.log.Info("exported dataset", "path", e.recipe.ExportPath, "records", len(records))
	return summary, nil
}

// workers returns the worker count for an op. Ops whose backend claims a
// whole accelerator run with a single worker.
func (e *Executor) workers(built op.Op) int {
	n := e.recipe.NumProc
	if n < 1 {
		n = 1
	}
	if excl, ok := built.(op.ExclusiveAccelerator); ok && excl.RequiresExclusiveAccelerator() && n > 1 {
		e.log.Warn("op claims exclusive accelerator, forcing single worker", "op", built.Name())
		n = 1
	}
	return n
}

func (e *Executor) runOp(ctx context.Context, built op.Op, records []*record.Record) ([]*record.Record, error) {
	switch o := built.(type) {
	case op.Mapper:
		return e.runMapper(ctx, o, records)
	case op.Filter:
		return e.runFilter(ctx, o, records)
	default:
		return nil, fmt.Errorf("op %s is neither a mapper nor a filter", built.Name())
	}
}

func (e *Executor) runMapper(ctx context.Context, mapper op.Mapper, records []*record.Record) ([]*record.Record, error) {
	// Snapshot inputs so trace diffs survive the in-place mutation.
	var snapshots []map[string]any
	if e.tracer != nil {
		snapshots = make([]map[string]any, len(records))
		for i, rec := range records {
			snapshots[i] = rec.Fields()
		}
	}

	if err := e.forEachRecord(ctx, mapper, records, func(ctx context.Context, idx, rank int) error {
		return mapper.ProcessSingle(ctx, records[idx], rank)
	}); err != nil {
		return nil, err
	}

	if e.tracer != nil {
		for i, rec := range records {
			if err := e.tracer.TraceMapper(ctx, mapper.Name(), i, snapshots[i], rec); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func (e *Executor) runFilter(ctx context.Context, filter op.Filter, records []*record.Record) ([]*record.Record, error) {
	keep := make([]bool, len(records))

	if err := e.forEachRecord(ctx, filter, records, func(ctx context.Context, idx, rank int) error {
		ok, err := filter.Keep(ctx, records[idx], rank)
		if err != nil {
			return err
		}
		keep[idx] = ok
		return nil
	}); err != nil {
		return nil, err
	}

	kept := make([]*record.Record, 0, len(records))
	for i, rec := range records {
		if keep[i] {
			kept = append(kept, rec)
			continue
		}
		if e.tracer != nil {
			if err := e.tracer.TraceFilter(ctx, filter.Name(), i); err != nil {
				return nil, err
			}
		}
	}
	return kept, nil
}

// forEachRecord fans records out to the op's worker pool. Each worker has a
// stable rank so model handles stay worker-local.
func (e *Executor) forEachRecord(ctx context.Context, built op.Op, records []*record.Record, fn func(ctx context.Context, idx, rank int) error) error {
	workers := e.workers(built)

	indices := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(indices)
		for i := range records {
			select {
			case indices <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for rank := 0; rank < workers; rank++ {
		rank := rank
		g.Go(func() error {
			for idx := range indices {
				if err := fn(gctx, idx, rank); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}
