package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/pipeline"
)

// runCommand creates the run command: load, align, blend and save.
func (c *CLI) runCommand() *cobra.Command {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:   "run <dir>",
		Short: "Stitch every image in a directory into one output image",
		Long: `Run loads the images in <dir> (sorted by file name), estimates the offset
between every pair, resolves them into one layout and blends
the result into the output file. The output format follows its extension:
png, jpg/jpeg, bmp, tif/tiff.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input = args[0]
			applyConfig(cmd, c.config, &opts)
			return c.runStitch(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "stitched.png", "output image file")
	cmd.Flags().IntVar(&opts.Quality, "quality", 0, "JPEG quality 1-100 (default 90)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing output file")
	addPipelineFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runStitch(ctx context.Context, opts pipeline.Options) error {
	// Fail before loading anything if the output cannot be written.
	if err := errors.ValidateLoadDir(opts.Input); err != nil {
		return err
	}
	if err := errors.ValidateSavePath(opts.Output, opts.Force); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := c.stageSpinner(ctx)
	prog := newProgress(loggerFromContext(ctx))
	result, err := runner.Execute(ctx, opts)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("Stitch complete")

	printSuccess("Stitched %s images", styleHighlight.Render(fmt.Sprint(result.Stats.LayerCount)))
	printRunStats(result)
	if result.Solution.Components > 1 {
		printWarning("%d groups of images did not overlap; they are stacked at the origin", result.Solution.Components)
	}
	printFile(opts.Output)
	printNextStep("Inspect which pairs were used", "stitch graph "+opts.Input)
	return nil
}
