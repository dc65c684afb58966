// Package raster defines the data model shared by every stitching stage.
//
// # Images
//
// [Image] is an immutable 8-bit RGB pixel grid stored row-major with three
// bytes per pixel. It implements [image.Image] so it can be handed straight to
// the standard encoders, and [FromImage] converts any decoded image into it
// (alpha is discarded, 16-bit channels are reduced to 8 bits).
//
// # Layers and Views
//
// A [Layer] pairs an Image with a world-space Position, the top-left corner of
// the image in the shared output coordinate system. Layers start at the origin
// and are moved only by the layout solver.
//
// A [View] is the ordered working set passed between pipeline stages. The order
// assigns each layer a stable index used to identify it in pairwise results;
// it carries no other meaning. Stages take a View by value and return a new
// one, so callers must treat a View they passed in as consumed:
//
//	v := raster.NewView(images...)
//	v, err := stage.Apply(ctx, v)
package raster
