package matchgraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/stitch/pkg/align"
	"github.com/matzehuels/stitch/pkg/raster"
)

// edgeKind classifies an offset by what the solver did with it.
type edgeKind int

const (
	edgeDiscarded edgeKind = iota
	edgeUsed
	edgeSkipped
)

var (
	lowCost, _  = colorful.Hex("#2e9e44")
	highCost, _ = colorful.Hex("#d1342f")
)

// ToDOT converts layers, their pairwise offsets and the solved layout to
// Graphviz DOT source. Positions come from sol when it covers every layer.
func ToDOT(v raster.View, offsets []align.Offset, sol align.Solution) string {
	kinds, residuals := classify(sol)
	maxCost := 0.0
	for _, o := range offsets {
		maxCost = max(maxCost, o.Cost)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for i, l := range v.Layers {
		pos := l.Position
		if len(sol.Positions) == v.Len() {
			pos = sol.Positions[i]
		}
		label := fmt.Sprintf("%s\n%dx%d @ (%d,%d)", nameOf(l, i), l.Image.W, l.Image.H, pos.X, pos.Y)
		fmt.Fprintf(&buf, "  n%d [label=%q];\n", i, label)
	}

	buf.WriteString("\n")
	for _, o := range offsets {
		key := [2]int{o.From, o.To}
		label := fmt.Sprintf("(%d,%d) %.4f", o.Shift.X, o.Shift.Y, o.Cost)
		attrs := []string{}
		switch kinds[key] {
		case edgeUsed:
			attrs = append(attrs, "penwidth=2")
		case edgeSkipped:
			label += fmt.Sprintf("\nresidual %.1f", residuals[key])
			attrs = append(attrs, "style=dashed")
		default:
			attrs = append(attrs, "style=dotted")
		}
		attrs = append(attrs, fmt.Sprintf("label=%q", label))
		if kinds[key] == edgeDiscarded {
			attrs = append(attrs, "color=grey", "fontcolor=grey")
		} else {
			attrs = append(attrs, fmt.Sprintf("color=%q", costColor(o.Cost, maxCost)))
		}
		fmt.Fprintf(&buf, "  n%d -> n%d [%s];\n", o.From, o.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func classify(sol align.Solution) (map[[2]int]edgeKind, map[[2]int]float64) {
	kinds := make(map[[2]int]edgeKind, len(sol.Used)+len(sol.Skipped))
	residuals := make(map[[2]int]float64, len(sol.Skipped))
	for _, o := range sol.Used {
		kinds[[2]int{o.From, o.To}] = edgeUsed
	}
	for i, o := range sol.Skipped {
		key := [2]int{o.From, o.To}
		kinds[key] = edgeSkipped
		if i < len(sol.Residuals) {
			residuals[key] = sol.Residuals[i]
		}
	}
	return kinds, residuals
}

// costColor blends from green to red as cost approaches maxCost.
func costColor(cost, maxCost float64) string {
	t := 0.0
	if maxCost > 0 {
		t = cost / maxCost
	}
	return lowCost.BlendHcl(highCost, t).Clamped().Hex()
}

func nameOf(l raster.Layer, i int) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("layer %d", i)
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return render(dot, graphviz.SVG)
}

// RenderPNG renders DOT source to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
