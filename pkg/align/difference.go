package align

import (
	"image"
	"math"

	"github.com/matzehuels/stitch/pkg/raster"
)

// Overlap returns the intersection of a and b, in a's coordinate frame, when b's
// top-left corner sits at offset. The result is empty if they do not overlap.
func Overlap(a, b *raster.Image, offset image.Point) image.Rectangle {
	ra := image.Rectangle{Max: a.Size()}
	rb := image.Rectangle{Min: offset, Max: offset.Add(b.Size())}
	return ra.Intersect(rb)
}

// Difference is the mean color distance between a and b over their overlap
// when b is shifted by offset relative to a. Only every density-th pixel on
// both axes is sampled, counted from the overlap's top-left corner.
//
// Lower is better; identical overlaps score 0. An empty overlap scores +Inf so
// it never wins a search.
func Difference(a, b *raster.Image, offset image.Point, density int, metric Metric) float64 {
	ov := Overlap(a, b, offset)
	if ov.Empty() {
		return math.Inf(1)
	}
	density = max(density, 1)
	dist := metric.distance()

	var sum float64
	var n int
	for y := ov.Min.Y; y < ov.Max.Y; y += density {
		rowA := 3 * y * a.W
		rowB := 3 * (y - offset.Y) * b.W
		for x := ov.Min.X; x < ov.Max.X; x += density {
			i := rowA + 3*x
			j := rowB + 3*(x-offset.X)
			sum += dist(a.Pix[i:i+3], b.Pix[j:j+3])
			n++
		}
	}
	return sum / float64(n)
}
