package align

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"math/bits"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/observability"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Offset is the estimated position of layer To relative to layer From.
type Offset struct {
	From  int         `json:"from"`
	To    int         `json:"to"`
	Shift image.Point `json:"shift"`
	// Cost is the mismatch score at Shift; lower is more trustworthy.
	Cost float64 `json:"cost"`
}

func (o Offset) String() string {
	return fmt.Sprintf("%d→%d %v (%.4f)", o.From, o.To, o.Shift, o.Cost)
}

// Window is an inclusive rectangle of candidate offsets.
type Window struct {
	Min, Max image.Point
}

// InitialWindow returns the first search window for a pair of images: centered
// on minus half the smaller image on each axis with a half-extent equal to the
// larger image.
func InitialWindow(a, b *raster.Image) Window {
	center := image.Pt(-min(a.W, b.W)/2, -min(a.H, b.H)/2)
	extent := image.Pt(max(a.W, b.W), max(a.H, b.H))
	return Window{Min: center.Sub(extent), Max: center.Add(extent)}
}

// around returns a window centered on p with the given half-extent.
func around(p image.Point, half int) Window {
	d := image.Pt(half, half)
	return Window{Min: p.Sub(d), Max: p.Add(d)}
}

// StartGranularity returns the coarsest grid step 2^r with
// r = floor(log2(s/16)), where s is the shortest side of either image.
// Small images start directly at 1.
func StartGranularity(a, b *raster.Image) int {
	side := min(a.W, a.H, b.W, b.H)
	if side <= 0 {
		return 1
	}
	r := bits.Len(uint(side)) - 1 - 4
	if r <= 0 {
		return 1
	}
	return 1 << r
}

// Memo short-circuits pairwise estimation, typically backed by a cache.
// Implementations must be safe for concurrent use.
type Memo interface {
	Load(ctx context.Context, a, b *raster.Image) (Offset, bool)
	Store(ctx context.Context, a, b *raster.Image, o Offset)
}

// Estimator computes pairwise offsets with a coarse-to-fine grid search.
// The zero value is ready to use.
type Estimator struct {
	// Metric selects the color distance (default MetricRGB).
	Metric Metric
	// Workers bounds the goroutines per fan-out (default GOMAXPROCS).
	Workers int
	// Memo, if set, is consulted before and updated after each pair.
	Memo Memo
	// Logger receives per-round debug output (default: discarded).
	Logger *log.Logger
}

var discard = log.New(io.Discard)

func (e *Estimator) logger() *log.Logger {
	if e.Logger == nil {
		return discard
	}
	return e.Logger
}

func (e *Estimator) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Estimator) metric() Metric {
	if e.Metric == "" {
		return DefaultMetric
	}
	return e.Metric
}

// candidate is a scored offset.
type candidate struct {
	shift image.Point
	cost  float64
}

// better reports whether c beats o. Ties keep o, so the first candidate in
// scan order wins and results do not depend on scheduling.
func (c candidate) better(o candidate) bool {
	return c.cost < o.cost
}

// Estimate returns the offset of b relative to a minimizing [Difference].
// From and To of the result are left zero.
func (e *Estimator) Estimate(ctx context.Context, a, b *raster.Image) (Offset, error) {
	if a.Empty() || b.Empty() {
		return Offset{}, errors.New(errors.ErrCodeDegenerateGeometry, "cannot align empty image (%dx%d, %dx%d)", a.W, a.H, b.W, b.H)
	}
	logger := e.logger()

	w := InitialWindow(a, b)
	best := candidate{cost: math.Inf(1)}
	for g := StartGranularity(a, b); g >= 1; g /= 2 {
		if err := ctx.Err(); err != nil {
			return Offset{}, err
		}
		var err error
		best, err = e.scan(ctx, a, b, w, g)
		if err != nil {
			return Offset{}, err
		}
		logger.Debug("searched window",
			"min", w.Min,
			"max", w.Max,
			"granularity", g,
			"best", best.shift,
			"cost", best.cost)
		w = around(best.shift, g)
	}

	if math.IsInf(best.cost, 1) {
		return Offset{}, errors.New(errors.ErrCodeDegenerateGeometry, "no overlapping offset in search window")
	}
	return Offset{Shift: best.shift, Cost: best.cost}, nil
}

// scan evaluates every offset in w on the stride-g grid, sampling pixels at
// density g. Rows of candidates are fanned out over the worker pool.
func (e *Estimator) scan(ctx context.Context, a, b *raster.Image, w Window, g int) (candidate, error) {
	metric := e.metric()
	x0, y0 := alignUp(w.Min.X, g), alignUp(w.Min.Y, g)

	var rows []int
	for y := y0; y <= w.Max.Y; y += g {
		rows = append(rows, y)
	}
	rowBest := make([]candidate, len(rows))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers())
	for i, y := range rows {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			best := candidate{cost: math.Inf(1)}
			for x := x0; x <= w.Max.X; x += g {
				c := candidate{shift: image.Pt(x, y)}
				c.cost = Difference(a, b, c.shift, g, metric)
				if c.better(best) {
					best = c
				}
			}
			rowBest[i] = best
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return candidate{}, err
	}

	best := candidate{shift: image.Pt(x0, y0), cost: math.Inf(1)}
	for _, c := range rowBest {
		if c.better(best) {
			best = c
		}
	}
	return best, nil
}

// alignUp rounds v up to the next multiple of g.
func alignUp(v, g int) int {
	r := v % g
	switch {
	case r == 0:
		return v
	case v > 0:
		return v - r + g
	default:
		return v - r
	}
}

// Pairs lists every unordered index pair (i, j), i < j, for n layers in
// lexicographic order.
func Pairs(n int) [][2]int {
	if n < 2 {
		return nil
	}
	out := make([][2]int, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// EstimateAll computes one Offset per unordered layer pair. Pairs are resolved
// in parallel; the result is ordered like [Pairs].
func (e *Estimator) EstimateAll(ctx context.Context, v raster.View) ([]Offset, error) {
	if v.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no layers to align")
	}
	logger := e.logger()
	hooks := observability.Pipeline()
	pairs := Pairs(v.Len())
	out := make([]Offset, len(pairs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers())
	for k, p := range pairs {
		eg.Go(func() error {
			a, b := v.Layers[p[0]].Image, v.Layers[p[1]].Image
			start := time.Now()

			o, hit := Offset{}, false
			if e.Memo != nil {
				o, hit = e.Memo.Load(ctx, a, b)
			}
			if !hit {
				var err error
				if o, err = e.Estimate(ctx, a, b); err != nil {
					return fmt.Errorf("pair %d/%d: %w", p[0], p[1], err)
				}
				if e.Memo != nil {
					e.Memo.Store(ctx, a, b, o)
				}
			}
			o.From, o.To = p[0], p[1]
			out[k] = o
			hooks.OnPairEstimated(ctx, o.From, o.To, o.Cost, hit)

			logger.Debug("estimated pair",
				"from", v.Layers[p[0]].Name,
				"to", v.Layers[p[1]].Name,
				"shift", o.Shift,
				"cost", o.Cost,
				"cached", hit,
				"duration", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
