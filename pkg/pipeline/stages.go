package pipeline

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/composite"
	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/imageio"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Stage names as reported in errors, logs and hooks.
const (
	StageLoad     = "load"
	StagePosition = "position"
	StageJoin     = "join"
	StageSave     = "save"
)

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}

// =============================================================================
// Load
// =============================================================================

// Load appends the images of Dir to the view as layers at the origin.
type Load struct {
	Dir    string
	Loader *imageio.Loader
	Logger *log.Logger
}

func (Load) Name() string { return StageLoad }

func (s Load) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	loader := s.Loader
	if loader == nil {
		loader = &imageio.Loader{Logger: s.Logger}
	}
	orDiscard(s.Logger).Info("Loading images", "dir", s.Dir)
	layers, err := loader.Load(ctx, s.Dir)
	if err != nil {
		return raster.View{}, err
	}
	out := v.Clone()
	out.Layers = append(out.Layers, layers...)
	return out, nil
}

// =============================================================================
// Position
// =============================================================================

// Position estimates every pairwise offset, solves the layout and moves each
// layer to its solved position.
type Position struct {
	Estimator *align.Estimator
	Logger    *log.Logger

	// OnSolved, if set, receives the offsets and the solution.
	OnSolved func(offsets []align.Offset, sol align.Solution)
}

func (Position) Name() string { return StagePosition }

func (s Position) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	logger := orDiscard(s.Logger)
	est := s.Estimator
	if est == nil {
		est = &align.Estimator{Logger: s.Logger}
	}

	logger.Info("Finding relative positions of images", "layers", v.Len(), "pairs", len(align.Pairs(v.Len())))
	offsets, err := est.EstimateAll(ctx, v)
	if err != nil {
		return raster.View{}, err
	}

	sol, err := align.Solve(v.Len(), offsets)
	if err != nil {
		return raster.View{}, err
	}
	sum := sol.Summary()
	logger.Debug("solved layout",
		"used", sum.Used,
		"skipped", sum.Skipped,
		"discarded", sum.Discarded,
		"max_residual", sum.MaxResidual)
	if sol.Components > 1 {
		logger.Warn("images do not form one connected set", "components", sol.Components)
	}
	if s.OnSolved != nil {
		s.OnSolved(offsets, sol)
	}
	return align.Apply(v, sol)
}

// =============================================================================
// Join
// =============================================================================

// Join blends all layers into a single layer at the origin.
type Join struct {
	Compositor *composite.Compositor
	Logger     *log.Logger
}

func (Join) Name() string { return StageJoin }

func (s Join) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	c := s.Compositor
	if c == nil {
		c = &composite.Compositor{}
	}
	orDiscard(s.Logger).Info("Joining images", "layers", v.Len())
	return c.Join(ctx, v)
}

// =============================================================================
// Save
// =============================================================================

// Save encodes the view's single layer to Path. The view passes through.
type Save struct {
	Path    string
	Options imageio.SaveOptions
	Logger  *log.Logger
}

func (Save) Name() string { return StageSave }

func (s Save) Apply(ctx context.Context, v raster.View) (raster.View, error) {
	if v.Len() != 1 {
		return raster.View{}, errors.New(errors.ErrCodeInvalidInput, "expected one joined layer, got %d", v.Len())
	}
	orDiscard(s.Logger).Info("Saving image", "path", s.Path)
	if err := imageio.Save(s.Path, v.Layers[0].Image, s.Options); err != nil {
		return raster.View{}, err
	}
	return v.Clone(), nil
}
