package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/pipeline"
)

// alignReport is the --json output of the align command.
type alignReport struct {
	Layers   []alignLayer   `json:"layers"`
	Offsets  []align.Offset `json:"offsets"`
	Solution align.Solution `json:"solution"`
	Summary  align.Summary  `json:"summary"`
}

type alignLayer struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// alignCommand creates the align command: offsets and layout without blending.
func (c *CLI) alignCommand() *cobra.Command {
	var (
		opts   pipeline.Options
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "align <dir>",
		Short: "Print pairwise offsets and the solved layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input = args[0]
			applyConfig(cmd, c.config, &opts)
			return c.runAlign(cmd.Context(), opts, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	addPipelineFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runAlign(ctx context.Context, opts pipeline.Options, asJSON bool) error {
	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := c.stageSpinner(ctx)
	result, err := runner.Align(ctx, opts)
	spinner.Stop()
	if err != nil {
		return err
	}

	report := newAlignReport(result)
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printSuccess("Aligned %s images", styleHighlight.Render(fmt.Sprint(len(report.Layers))))
	printRunStats(result)
	printNewline()

	fmt.Println(styleTitle.Render("Offsets"))
	used := make(map[[2]int]bool, len(result.Solution.Used))
	for _, o := range result.Solution.Used {
		used[[2]int{o.From, o.To}] = true
	}
	for _, o := range result.Offsets {
		mark := styleDim.Render("  ")
		if used[[2]int{o.From, o.To}] {
			mark = styleIconSuccess.Render(iconSuccess) + " "
		}
		fmt.Printf("%s%s %s %s  %s  %s\n", mark,
			report.Layers[o.From].Name, styleDim.Render(iconArrow), report.Layers[o.To].Name,
			styleValue.Render(fmt.Sprintf("(%d,%d)", o.Shift.X, o.Shift.Y)),
			styleDim.Render(fmt.Sprintf("cost %.4f", o.Cost)))
	}
	printNewline()

	fmt.Println(styleTitle.Render("Positions"))
	for _, l := range report.Layers {
		printKeyValue(l.Name, fmt.Sprintf("(%d,%d)  %dx%d", l.X, l.Y, l.Width, l.Height))
	}
	if report.Summary.Skipped > 0 {
		printNewline()
		printDetail("%d redundant pairs, residual mean %.2f max %.2f",
			report.Summary.Skipped, report.Summary.MeanResidual, report.Summary.MaxResidual)
	}
	return nil
}

func newAlignReport(r *pipeline.Result) alignReport {
	report := alignReport{
		Offsets:  r.Offsets,
		Solution: r.Solution,
		Summary:  r.Solution.Summary(),
	}
	for _, l := range r.Positioned.Layers {
		report.Layers = append(report.Layers, alignLayer{
			Name:   l.Name,
			Width:  l.Image.W,
			Height: l.Image.H,
			X:      l.Position.X,
			Y:      l.Position.Y,
		})
	}
	return report
}
