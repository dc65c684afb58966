// Package pipeline sequences the stitching stages and caches their results.
//
// A stitch runs four stages over a [raster.View]:
//
//  1. Load: decode every image in the input directory into a layer at the origin
//  2. Position: estimate pairwise offsets and resolve them into layer positions
//  3. Join: blend the positioned layers into one output layer
//  4. Save: encode the output layer to the destination path
//
// Each stage implements [Operation] and receives the previous stage's view.
// An [Operator] runs an ordered list of stages; a [Runner] builds the
// standard list from [Options] and wires the offset cache into Position.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:  "shots/",
//	    Output: "panorama.png",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Output.Bounds())
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/cache"
	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/imageio"
	"github.com/matzehuels/stitch/pkg/raster"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultMetric is the color distance used when Options.Metric is empty.
const DefaultMetric = string(align.DefaultMetric)

// DefaultQuality is the JPEG quality used when Options.Quality is zero.
const DefaultQuality = imageio.DefaultJPEGQuality

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a stitch.
// It decodes from JSON (API requests) and TOML (config files).
type Options struct {
	// Input is the directory holding the images to stitch.
	Input string `json:"input,omitempty" toml:"input"`
	// Output is the destination file. Empty skips the Save stage.
	Output string `json:"output,omitempty" toml:"output"`

	Metric  string `json:"metric,omitempty" toml:"metric"`
	Workers int    `json:"workers,omitempty" toml:"workers"`
	Quality int    `json:"quality,omitempty" toml:"quality"`

	// NoCache disables the pairwise offset cache.
	NoCache bool `json:"no_cache,omitempty" toml:"no_cache"`
	// Force allows overwriting an existing output file.
	Force bool `json:"force,omitempty" toml:"force"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Layers are the loaded input layers, all at the origin.
	Layers raster.View

	// Offsets holds one estimated offset per layer pair.
	Offsets []align.Offset

	// Solution is the resolved layout.
	Solution align.Solution

	// Positioned is Layers with the solved positions applied.
	Positioned raster.View

	// Output is the composited image, nil when only aligning.
	Output *raster.Image

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo reports offset cache usage.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	LayerCount int
	PairCount  int
	Width      int
	Height     int
	Timings    []Timing
}

// Timing is the wall time spent in one stage.
type Timing struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// CacheInfo counts offset cache lookups.
type CacheInfo struct {
	OffsetHits   int
	OffsetMisses int
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForAlign(); err != nil {
		return err
	}
	if err := o.ValidateForJoin(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForAlign checks the fields needed to load and position layers.
func (o *Options) ValidateForAlign() error {
	if o.Input == "" {
		return errors.New(errors.ErrCodeInvalidInput, "input directory is required")
	}
	return o.setAlignDefaults()
}

// ValidateForJoin checks the fields needed to composite and save.
func (o *Options) ValidateForJoin() error {
	if err := o.setAlignDefaults(); err != nil {
		return err
	}
	if o.Output != "" {
		if err := errors.ValidateSaveExtension(o.Output); err != nil {
			return err
		}
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Quality < 1 || o.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "quality %d out of range 1..100", o.Quality)
	}
	return nil
}

// setAlignDefaults normalizes the metric and worker settings.
func (o *Options) setAlignDefaults() error {
	if o.Metric == "" {
		o.Metric = DefaultMetric
	}
	m, err := align.ParseMetric(o.Metric)
	if err != nil {
		return err
	}
	o.Metric = string(m)
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers must not be negative")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// OffsetKeyOpts returns cache key options for pairwise offsets.
func (o *Options) OffsetKeyOpts() cache.OffsetKeyOpts {
	return cache.OffsetKeyOpts{Metric: o.Metric}
}

// SaveOptions returns encoder options for the Save stage.
func (o *Options) SaveOptions() imageio.SaveOptions {
	return imageio.SaveOptions{Quality: o.Quality, Overwrite: o.Force}
}
