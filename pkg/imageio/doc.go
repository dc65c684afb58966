// Package imageio reads input images from disk and writes stitched results.
//
// Decoding accepts PNG, JPEG, GIF, BMP, TIFF and WebP. Every decoded image is
// converted to a [raster.Image], so alpha is discarded and 16-bit channels are
// reduced to 8 bits. Encoding supports PNG, JPEG, BMP and TIFF, chosen by the
// output file extension.
//
// Files in a directory are loaded in name order. That order determines layer
// indices, which decide the order pairs are listed in and which way ties break.
package imageio
