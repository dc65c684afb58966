// Package composite blends positioned layers into a single raster.
//
// The output covers the union of all layer footprints. Every output pixel is
// the weighted mean of the layers covering it, where a layer's weight falls
// off with the fourth power of the distance between the pixel center and the
// layer center. Pixels near the middle of a layer therefore dominate pixels
// near its border, which hides seams without a hard blending boundary.
// Pixels no layer covers stay black.
package composite

import (
	"context"
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/raster"
)

// MinDistanceSquared clamps the squared pixel-to-center distance so a pixel
// sitting exactly on a layer center gets a large but finite weight.
const MinDistanceSquared = 1.0

// Weight returns the blending weight (1/d)^4 of a layer centered at (cx, cy)
// for the pixel whose center is at (px, py).
func Weight(px, py, cx, cy float64) float64 {
	dx, dy := px-cx, py-cy
	d2 := max(dx*dx+dy*dy, MinDistanceSquared)
	return 1 / (d2 * d2)
}

// Bounds returns the union of all layer footprints in world coordinates.
func Bounds(v raster.View) (image.Rectangle, error) {
	if v.Len() == 0 {
		return image.Rectangle{}, errors.New(errors.ErrCodeEmptyInput, "no layers to join")
	}
	r := v.Layers[0].Rect()
	for _, l := range v.Layers[1:] {
		lr := l.Rect()
		r.Min.X = min(r.Min.X, lr.Min.X)
		r.Min.Y = min(r.Min.Y, lr.Min.Y)
		r.Max.X = max(r.Max.X, lr.Max.X)
		r.Max.Y = max(r.Max.Y, lr.Max.Y)
	}
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}, errors.New(errors.ErrCodeDegenerateGeometry, "canvas %v has non-positive size", r)
	}
	return r, nil
}

// Compositor joins a positioned view into one image.
// The zero value is ready to use.
type Compositor struct {
	// Workers bounds the number of rows blended concurrently (default GOMAXPROCS).
	Workers int
}

func (c *Compositor) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Join blends every layer of v and returns a view holding exactly one layer,
// at the origin, with the blended image.
func (c *Compositor) Join(ctx context.Context, v raster.View) (raster.View, error) {
	img, _, err := c.Blend(ctx, v)
	if err != nil {
		return raster.View{}, err
	}
	return raster.NewView(raster.NewLayer("composite", img)), nil
}

// Blend renders the composite and also returns the world-space rectangle it
// covers.
func (c *Compositor) Blend(ctx context.Context, v raster.View) (*raster.Image, image.Rectangle, error) {
	bounds, err := Bounds(v)
	if err != nil {
		return nil, image.Rectangle{}, err
	}

	centers := make([][2]float64, v.Len())
	for i, l := range v.Layers {
		centers[i][0], centers[i][1] = l.Center()
	}

	out := raster.New(bounds.Dx(), bounds.Dy())
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			blendRow(out, v, centers, bounds, y)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, image.Rectangle{}, err
	}
	return out, bounds, nil
}

// blendRow writes output row y (world coordinates). Rows touch disjoint parts
// of out.Pix, so rows may be blended concurrently.
func blendRow(out *raster.Image, v raster.View, centers [][2]float64, bounds image.Rectangle, y int) {
	py := float64(y) + 0.5
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		p := image.Pt(x, y)
		px := float64(x) + 0.5

		var r, g, b, sum float64
		for i, l := range v.Layers {
			col, ok := l.Pixel(p)
			if !ok {
				continue
			}
			w := Weight(px, py, centers[i][0], centers[i][1])
			r += w * float64(col[0])
			g += w * float64(col[1])
			b += w * float64(col[2])
			sum += w
		}
		if sum == 0 {
			continue
		}
		out.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, [3]uint8{
			channel(r / sum),
			channel(g / sum),
			channel(b / sum),
		})
	}
}

func channel(v float64) uint8 {
	return uint8(min(max(math.Round(v), 0), 255))
}
