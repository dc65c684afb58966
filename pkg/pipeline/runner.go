package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/cache"
	"github.com/matzehuels/stitch/pkg/composite"
	"github.com/matzehuels/stitch/pkg/imageio"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it so offset caching behaves the same everywhere.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs load → position → join → save. Save is skipped when
// opts.Output is empty.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}
	memo := r.memo(opts)
	op := NewOperator(opts.Logger).Add(
		r.load(opts, result),
		r.position(opts, memo, result),
		Join{Compositor: &composite.Compositor{Workers: opts.Workers}, Logger: opts.Logger},
	)
	if opts.Output != "" {
		op.Add(Save{Path: opts.Output, Options: opts.SaveOptions(), Logger: opts.Logger})
	}

	out, err := op.Run(ctx, raster.View{})
	if err != nil {
		return nil, err
	}
	r.finish(result, op, memo)
	result.Output = out.Layers[0].Image
	result.Stats.Width, result.Stats.Height = result.Output.W, result.Output.H
	return result, nil
}

// Align runs load → position only. The result has no Output.
func (r *Runner) Align(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForAlign(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}
	memo := r.memo(opts)
	op := NewOperator(opts.Logger).Add(
		r.load(opts, result),
		r.position(opts, memo, result),
	)
	if _, err := op.Run(ctx, raster.View{}); err != nil {
		return nil, err
	}
	r.finish(result, op, memo)
	return result, nil
}

// Stitch positions and joins layers that are already decoded, as received by
// the HTTP API. opts.Input and opts.Output are ignored.
func (r *Runner) Stitch(ctx context.Context, layers []raster.Layer, opts Options) (*Result, error) {
	opts.Input, opts.Output = "", ""
	r.applyLogger(&opts)
	if err := opts.ValidateForJoin(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{Layers: raster.NewView(layers...)}
	memo := r.memo(opts)
	op := NewOperator(opts.Logger).Add(
		r.position(opts, memo, result),
		Join{Compositor: &composite.Compositor{Workers: opts.Workers}, Logger: opts.Logger},
	)
	out, err := op.Run(ctx, result.Layers)
	if err != nil {
		return nil, err
	}
	r.finish(result, op, memo)
	result.Output = out.Layers[0].Image
	result.Stats.Width, result.Stats.Height = result.Output.W, result.Output.H
	return result, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// memo returns the offset memo for opts, or nil when caching is disabled.
func (r *Runner) memo(opts Options) *cacheMemo {
	if opts.NoCache {
		return nil
	}
	return newCacheMemo(r.Cache, r.Keyer, opts.OffsetKeyOpts(), opts.Logger)
}

// load returns a Load stage that records the loaded layers in result.
func (r *Runner) load(opts Options, result *Result) Operation {
	return recordLoad{
		Load: Load{
			Dir:    opts.Input,
			Loader: &imageio.Loader{Workers: opts.Workers, Logger: opts.Logger},
			Logger: opts.Logger,
		},
		result: result,
	}
}

func (r *Runner) position(opts Options, memo *cacheMemo, result *Result) Operation {
	est := &align.Estimator{
		Metric:  align.Metric(opts.Metric),
		Workers: opts.Workers,
		Logger:  opts.Logger,
	}
	if memo != nil {
		est.Memo = memo
	}
	return recordPosition{
		Position: Position{
			Estimator: est,
			Logger:    opts.Logger,
			OnSolved: func(offsets []align.Offset, sol align.Solution) {
				result.Offsets, result.Solution = offsets, sol
			},
		},
		result: result,
	}
}

func (r *Runner) finish(result *Result, op *Operator, memo *cacheMemo) {
	result.Stats.LayerCount = result.Layers.Len()
	result.Stats.PairCount = len(result.Offsets)
	result.Stats.Timings = op.Timings()
	if memo != nil {
		result.CacheInfo = memo.info()
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// recordLoad keeps the loaded view for the Result.
type recordLoad struct {
	Load
	result *Result
}

func (s recordLoad) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	out, err := s.Load.Apply(ctx, v)
	if err == nil {
		s.result.Layers = out.Clone()
	}
	return out, err
}

// recordPosition keeps the positioned view for the Result.
type recordPosition struct {
	Position
	result *Result
}

func (s recordPosition) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	out, err := s.Position.Apply(ctx, v)
	if err == nil {
		s.result.Positioned = out.Clone()
	}
	return out, err
}
