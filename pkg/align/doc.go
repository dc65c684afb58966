// Package align discovers where overlapping layers sit relative to each other.
//
// Alignment is purely translational and happens in two steps.
//
// # Pairwise estimation
//
// [Estimator] searches, for every unordered pair of layers, the integer shift
// of the second image relative to the first that minimizes a normalized color
// mismatch over the overlap ([Difference]). The search is coarse-to-fine: it
// starts on a grid whose step ([StartGranularity]) depends on the image
// resolution, keeps the best candidate, shrinks the window around it and
// halves the step until it reaches one pixel. At the finest round every
// overlapping pixel is compared, so the reported cost is exact.
//
// # Layout solving
//
// [Solve] turns the pairwise [Offset] list into one position per layer. It
// sorts offsets by cost and merges layers Kruskal-style with a disjoint-set
// [Partition] that carries an accumulated translation per member. Offsets
// that would close a cycle are skipped and never checked against the
// established layout; [Solution.Residuals] reports how far they disagree so
// callers can detect contradictory input, but the layout is not corrected.
//
// Layers that share no usable offset with the rest keep their own singleton
// translation and therefore stay at the origin.
package align
