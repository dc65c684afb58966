package align

import (
	"image"

	"github.com/matzehuels/stitch/pkg/raster"
)

// ramp returns an image whose red and green channels grow linearly with x
// and y. Any misalignment produces the same mismatch at every pixel, so the
// score is a cone centered on the true shift.
func ramp(w, h int) *raster.Image {
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, [3]uint8{uint8(2 * x), uint8(2 * y), 90})
		}
	}
	return img
}

// noise returns a deterministic pseudo-random image.
func noise(w, h int, seed uint32) *raster.Image {
	img := raster.New(w, h)
	s := seed | 1
	for i := range img.Pix {
		s ^= s << 13
		s ^= s >> 17
		s ^= s << 5
		img.Pix[i] = uint8(s >> 24)
	}
	return img
}

// crop copies the w×h region of src whose top-left corner is at p.
func crop(src *raster.Image, p image.Point, w, h int) *raster.Image {
	out := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetRGB(x, y, src.RGB(p.X+x, p.Y+y))
		}
	}
	return out
}

func solid(w, h int, c [3]uint8) *raster.Image {
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, c)
		}
	}
	return img
}
