package align

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/stitch/pkg/errors"
)

// Metric selects the per-pixel color distance used by [Difference].
type Metric string

const (
	// MetricRGB is the Euclidean distance between RGB triples with every
	// channel normalized to [0, 1]. It is the default.
	MetricRGB Metric = "rgb"

	// MetricLab is the CIE76 distance in L*a*b* space. It tracks perceived
	// difference more closely at roughly ten times the cost per pixel.
	MetricLab Metric = "lab"
)

// DefaultMetric is used when no metric is configured.
const DefaultMetric = MetricRGB

// ParseMetric converts a user-supplied name into a Metric.
// The empty string selects DefaultMetric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMetric, nil
	case MetricRGB:
		return MetricRGB, nil
	case MetricLab:
		return MetricLab, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMetric, "invalid metric: %q (must be one of: rgb, lab)", s)
}

type distanceFunc func(p, q []uint8) float64

func (m Metric) distance() distanceFunc {
	if m == MetricLab {
		return labDistance
	}
	return rgbDistance
}

func rgbDistance(p, q []uint8) float64 {
	dr := (float64(p[0]) - float64(q[0])) / 255
	dg := (float64(p[1]) - float64(q[1])) / 255
	db := (float64(p[2]) - float64(q[2])) / 255
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func labDistance(p, q []uint8) float64 {
	return toColorful(p).DistanceLab(toColorful(q))
}

func toColorful(p []uint8) colorful.Color {
	return colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}
}
