// Package pkg provides the core libraries for stitch, a tool that aligns
// overlapping images and blends them into a single picture.
//
// # Overview
//
// Stitch assumes its inputs differ only by a translation: a handheld pan, a
// flatbed scanner run in strips, tiles cut from a larger map. The pkg
// directory is organized into three areas:
//
//  1. [align] and [composite] - the image math (offset search, layout, blending)
//  2. [raster] and [imageio] - in-memory pixels and file formats
//  3. [pipeline], [cache] and [server] - orchestration and the surfaces around it
//
// # Architecture
//
// The data flow through stitch:
//
//	Directory of images
//	         ↓
//	    [imageio] package (decode, sorted by file name)
//	         ↓
//	    [align] package (pairwise offsets, confidence-ordered layout)
//	         ↓
//	    [composite] package (inverse-distance blending)
//	         ↓
//	    PNG/JPEG/BMP/TIFF output
//
// # Quick Start
//
// Stitch a directory programmatically:
//
//	layers, _ := imageio.LoadDir(ctx, "shots/")
//	view := raster.NewView(layers...)
//
//	est := &align.Estimator{Metric: align.MetricRGB}
//	offsets, _ := est.EstimateAll(ctx, view)
//	sol, _ := align.Solve(view.Len(), offsets)
//	view, _ = align.Apply(view, sol)
//
//	joined, _ := (&composite.Compositor{}).Join(ctx, view)
//	_ = imageio.Save("out.png", joined.Layers[0].Image, imageio.SaveOptions{})
//
// Or let [pipeline] sequence the same stages with offset caching:
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	result, _ := runner.Execute(ctx, pipeline.Options{Input: "shots/", Output: "out.png"})
//
// # Main Packages
//
// [align] - Coarse-to-fine offset search between two images and the layout
// solver that turns pairwise offsets into one position per image.
//
// [composite] - Blends positioned layers; each pixel is weighted by the
// inverse fourth power of its distance to the layer center.
//
// [raster] - Packed RGB images, positioned layers and views.
//
// [imageio] - Directory loading and format-aware saving.
//
// [pipeline] - The Load, Position, Join and Save stages and the runner used by
// the CLI and the HTTP server.
//
// [cache] - File, Redis and null caches for pairwise offsets.
//
// [render/matchgraph] - Graphviz rendering of which pairs shaped the layout.
//
// [server] - HTTP endpoint that stitches uploaded images.
//
// [observability] - Hooks for stage, cache and HTTP events.
//
// [errors] - Coded errors and input path validation.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/align/...              # Specific package
//	go test -run Example                 # Examples only
//
// [align]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/align
// [composite]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/composite
// [raster]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/raster
// [imageio]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/imageio
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/cache
// [render/matchgraph]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/render/matchgraph
// [server]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/server
// [observability]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/stitch/pkg/errors
package pkg
