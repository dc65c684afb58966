package align

import (
	"image"
	"math"
	"testing"

	"github.com/matzehuels/stitch/pkg/raster"
)

func TestOverlap(t *testing.T) {
	a := raster.New(10, 8)
	b := raster.New(4, 4)

	tests := []struct {
		name   string
		offset image.Point
		want   image.Rectangle
	}{
		{"inside", image.Pt(2, 3), image.Rect(2, 3, 6, 7)},
		{"right edge", image.Pt(8, 0), image.Rect(8, 0, 10, 4)},
		{"negative", image.Pt(-2, -1), image.Rect(0, 0, 2, 3)},
		{"disjoint", image.Pt(10, 0), image.Rectangle{}},
		{"touching corner", image.Pt(-4, -4), image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlap(a, b, tt.offset); got != tt.want {
				t.Errorf("Overlap(%v) = %v, want %v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestDifferenceIdentical(t *testing.T) {
	img := noise(20, 12, 7)
	for _, m := range []Metric{MetricRGB, MetricLab} {
		if got := Difference(img, img, image.Point{}, 1, m); got != 0 {
			t.Errorf("Difference(%s) of identical images = %v, want 0", m, got)
		}
	}
}

func TestDifferenceEmptyOverlap(t *testing.T) {
	a := raster.New(5, 5)
	if got := Difference(a, a, image.Pt(5, 0), 1, MetricRGB); !math.IsInf(got, 1) {
		t.Errorf("Difference with empty overlap = %v, want +Inf", got)
	}
}

func TestDifferenceNormalized(t *testing.T) {
	black := solid(3, 3, [3]uint8{0, 0, 0})
	white := solid(3, 3, [3]uint8{255, 255, 255})
	red := solid(3, 3, [3]uint8{255, 0, 0})

	tests := []struct {
		name string
		a, b *raster.Image
		want float64
	}{
		{"black vs white", black, white, math.Sqrt(3)},
		{"black vs red", black, red, 1},
		{"red vs white", red, white, math.Sqrt(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Difference(tt.a, tt.b, image.Pt(1, 1), 1, MetricRGB)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Difference = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifferenceMeanOverOverlap(t *testing.T) {
	// a is black except its right column, which is red. With b (all black)
	// shifted right by one, the overlap is 2x2 and half of it is red.
	a := raster.New(3, 2)
	a.SetRGB(2, 0, [3]uint8{255, 0, 0})
	a.SetRGB(2, 1, [3]uint8{255, 0, 0})
	b := raster.New(3, 2)

	if got := Difference(a, b, image.Pt(1, 0), 1, MetricRGB); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Difference = %v, want 0.5", got)
	}
}

func TestDifferenceDensity(t *testing.T) {
	// Only even columns differ; sampling every second pixel from the overlap
	// origin sees nothing but differences.
	a := raster.New(4, 1)
	b := raster.New(4, 1)
	a.SetRGB(0, 0, [3]uint8{255, 0, 0})
	a.SetRGB(2, 0, [3]uint8{255, 0, 0})

	if got := Difference(a, b, image.Point{}, 1, MetricRGB); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("density 1 = %v, want 0.5", got)
	}
	if got := Difference(a, b, image.Point{}, 2, MetricRGB); math.Abs(got-1) > 1e-12 {
		t.Errorf("density 2 = %v, want 1", got)
	}
	if got := Difference(a, b, image.Point{}, 0, MetricRGB); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("density 0 should behave like 1, got %v", got)
	}
}

func TestDifferenceIsNonNegative(t *testing.T) {
	a, b := noise(16, 16, 3), noise(16, 16, 11)
	for _, off := range []image.Point{{0, 0}, {3, -2}, {-7, 5}, {15, 15}} {
		if got := Difference(a, b, off, 1, MetricRGB); got < 0 {
			t.Errorf("Difference(%v) = %v, want >= 0", off, got)
		}
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"", MetricRGB, false},
		{"rgb", MetricRGB, false},
		{" LAB ", MetricLab, false},
		{"hsv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMetric(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
