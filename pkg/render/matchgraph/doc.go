// Package matchgraph renders the pairwise match graph of a stitch with Graphviz.
//
// Every layer becomes a node labelled with its name, size and solved
// position. Every estimated offset becomes an edge from the reference layer to
// the shifted layer, labelled with the shift and its mismatch cost:
//
//   - solid edges were used to build the layout
//   - dashed edges were redundant; their label adds the residual
//   - dotted grey edges were never examined because the layout was complete
//
// Edge color runs from green (low cost) to red (the highest cost in the
// graph), so a bad pairing stands out.
//
// # Usage
//
//	dot := matchgraph.ToDOT(result.Layers, result.Offsets, result.Solution)
//	svg, err := matchgraph.RenderSVG(dot)
package matchgraph
