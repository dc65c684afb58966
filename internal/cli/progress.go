package cli

import (
	"context"
	"time"

	"github.com/matzehuels/stitch/pkg/observability"
)

// stageMessages are the spinner texts shown while a stage runs.
var stageMessages = map[string]string{
	"load":     "Loading images...",
	"position": "Finding relative positions of images...",
	"join":     "Joining images...",
	"save":     "Saving image...",
}

// stageSpinner starts a spinner that follows pipeline stages when progress
// logs are suppressed. It returns nil otherwise; a nil *Spinner is inert.
// Stopping the spinner restores the pipeline hooks it replaced.
func (c *CLI) stageSpinner(ctx context.Context) *Spinner {
	if !c.quiet() {
		return nil
	}
	s := newSpinnerWithContext(ctx, "Starting...")
	prev := observability.Pipeline()
	observability.SetPipelineHooks(spinnerHooks{s})
	s.onStop = func() { observability.SetPipelineHooks(prev) }
	s.Start()
	return s
}

// spinnerHooks updates a spinner as stages start.
type spinnerHooks struct {
	spinner *Spinner
}

func (h spinnerHooks) OnStageStart(_ context.Context, stage string, _ int) {
	if msg, ok := stageMessages[stage]; ok {
		h.spinner.Update(msg)
	}
}

func (spinnerHooks) OnStageComplete(context.Context, string, int, time.Duration, error) {}
func (spinnerHooks) OnPairEstimated(context.Context, int, int, float64, bool)           {}
