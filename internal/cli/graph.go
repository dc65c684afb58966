package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/pipeline"
	"github.com/matzehuels/stitch/pkg/render/matchgraph"
)

// graphFormats maps output extensions to renderers.
var graphFormats = map[string]func(dot string) ([]byte, error){
	".dot": func(dot string) ([]byte, error) { return []byte(dot), nil },
	".svg": matchgraph.RenderSVG,
	".png": matchgraph.RenderPNG,
}

// graphCommand creates the graph command: render the pairwise match graph.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		opts   pipeline.Options
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph <dir>",
		Short: "Render the pairwise match graph (dot, svg or png)",
		Long: `Graph aligns the images in <dir> and renders which pairs were used to
build the layout. Solid edges built the layout, dashed edges were redundant
and dotted edges were never needed. The format follows the output extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input = args[0]
			applyConfig(cmd, c.config, &opts)
			return c.runGraph(cmd.Context(), opts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "matches.svg", "output file (.dot, .svg, .png)")
	addPipelineFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, opts pipeline.Options, output string) error {
	render, ok := graphFormats[strings.ToLower(filepath.Ext(output))]
	if !ok {
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported graph format %q (must be .dot, .svg or .png)", filepath.Ext(output))
	}

	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := c.stageSpinner(ctx)
	result, err := runner.Align(ctx, opts)
	if err != nil {
		spinner.Stop()
		return err
	}
	spinner.Update("Rendering match graph...")
	data, err := render(matchgraph.ToDOT(result.Layers, result.Offsets, result.Solution))
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("render graph: %w", err)
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Rendered match graph")
	printRunStats(result)
	printFile(output)
	return nil
}
