package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stitch/pkg/observability"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Operation is one pipeline stage. Apply must not modify its input view;
// it returns a view the caller owns.
type Operation interface {
	Name() string
	Apply(ctx context.Context, v raster.View) (raster.View, error)
}

// Operator runs stages in the order they were added.
type Operator struct {
	stages  []Operation
	timings []Timing
	logger  *log.Logger
}

// NewOperator creates an operator that logs stage progress to logger.
// A nil logger discards.
func NewOperator(logger *log.Logger) *Operator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Operator{logger: logger}
}

// Add appends stages and returns the operator for chaining.
func (o *Operator) Add(ops ...Operation) *Operator {
	o.stages = append(o.stages, ops...)
	return o
}

// Stages returns the stage names in run order.
func (o *Operator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run threads v through every stage. The first failing stage aborts the run
// and its error is returned as "<stage>: <err>".
func (o *Operator) Run(ctx context.Context, v raster.View) (raster.View, error) {
	o.timings = o.timings[:0]
	hooks := observability.Pipeline()

	for _, op := range o.stages {
		if err := ctx.Err(); err != nil {
			return raster.View{}, err
		}
		name := op.Name()
		hooks.OnStageStart(ctx, name, v.Len())
		o.logger.Debug("stage started", "stage", name, "layers", v.Len())

		start := time.Now()
		out, err := op.Apply(ctx, v)
		elapsed := time.Since(start)

		hooks.OnStageComplete(ctx, name, out.Len(), elapsed, err)
		o.timings = append(o.timings, Timing{Stage: name, Duration: elapsed})
		if err != nil {
			return raster.View{}, fmt.Errorf("%s: %w", name, err)
		}
		o.logger.Debug("stage finished", "stage", name, "layers", out.Len(), "duration", elapsed.Round(time.Millisecond))
		v = out
	}
	return v, nil
}

// Timings returns the per-stage durations of the last Run.
func (o *Operator) Timings() []Timing {
	return append([]Timing(nil), o.timings...)
}
