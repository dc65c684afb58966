package align

import (
	"cmp"
	"image"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/raster"
)

// Solution is the outcome of [Solve].
type Solution struct {
	// Positions holds one world position per layer index.
	Positions []image.Point `json:"positions"`

	// Used lists the offsets that merged two sets, in processing order.
	Used []Offset `json:"used"`

	// Skipped lists offsets examined after both ends were already connected.
	Skipped []Offset `json:"skipped,omitempty"`

	// Residuals[i] is the distance between Skipped[i].Shift and the relative
	// position the layout already implied for that pair. It is reported only;
	// the layout is never adjusted.
	Residuals []float64 `json:"residuals,omitempty"`

	// Discarded counts offsets never examined because every layer was
	// connected before they were reached.
	Discarded int `json:"discarded"`

	// Components is the number of disjoint sets left at the end. Anything
	// above one means some layers fell back to the origin.
	Components int `json:"components"`
}

// Solve assigns every one of n layers a position consistent with the
// lowest-cost offsets. See the package documentation for the algorithm.
func Solve(n int, offsets []Offset) (Solution, error) {
	if n <= 0 {
		return Solution{}, errors.New(errors.ErrCodeEmptyInput, "no layers to position")
	}
	for _, o := range offsets {
		if o.From < 0 || o.To < 0 || o.From >= n || o.To >= n || o.From == o.To {
			return Solution{}, errors.New(errors.ErrCodeInvalidInput, "offset %v references invalid layer pair for %d layers", o, n)
		}
	}

	sorted := slices.Clone(offsets)
	slices.SortStableFunc(sorted, func(a, b Offset) int {
		return cmp.Or(
			cmp.Compare(a.Cost, b.Cost),
			cmp.Compare(a.From, b.From),
			cmp.Compare(a.To, b.To),
		)
	})

	p := NewPartition(n)
	var sol Solution
	for k, o := range sorted {
		if p.Sets() == 1 {
			sol.Discarded = len(sorted) - k
			break
		}
		i, j := o.From, o.To
		if p.Same(i, j) {
			implied := p.Translation(j).Sub(p.Translation(i))
			d := o.Shift.Sub(implied)
			sol.Skipped = append(sol.Skipped, o)
			sol.Residuals = append(sol.Residuals, math.Hypot(float64(d.X), float64(d.Y)))
			continue
		}
		moveTo := p.Translation(i).Add(o.Shift).Sub(p.Translation(j))
		p.Translate(j, moveTo)
		p.Union(i, j)
		sol.Used = append(sol.Used, o)
	}

	sol.Positions = make([]image.Point, n)
	for i := range n {
		sol.Positions[i] = p.Translation(i)
	}
	sol.Components = p.Sets()
	return sol, nil
}

// Apply returns a copy of v with every layer moved to its solved position.
func Apply(v raster.View, sol Solution) (raster.View, error) {
	if len(sol.Positions) != v.Len() {
		return raster.View{}, errors.New(errors.ErrCodeInvalidInput, "solution has %d positions for %d layers", len(sol.Positions), v.Len())
	}
	out := v.Clone()
	for i := range out.Layers {
		out.Layers[i].Position = sol.Positions[i]
	}
	return out, nil
}

// Summary condenses a Solution for logging and reports.
type Summary struct {
	Used         int     `json:"used"`
	Skipped      int     `json:"skipped"`
	Discarded    int     `json:"discarded"`
	Components   int     `json:"components"`
	MeanCost     float64 `json:"mean_cost"`
	MaxCost      float64 `json:"max_cost"`
	MeanResidual float64 `json:"mean_residual"`
	MaxResidual  float64 `json:"max_residual"`
}

// Summary computes aggregate statistics over the used and skipped offsets.
func (s Solution) Summary() Summary {
	sum := Summary{
		Used:       len(s.Used),
		Skipped:    len(s.Skipped),
		Discarded:  s.Discarded,
		Components: s.Components,
	}
	if len(s.Used) > 0 {
		costs := make([]float64, len(s.Used))
		for i, o := range s.Used {
			costs[i] = o.Cost
		}
		sum.MeanCost = stat.Mean(costs, nil)
		sum.MaxCost = floats.Max(costs)
	}
	if len(s.Residuals) > 0 {
		sum.MeanResidual = stat.Mean(s.Residuals, nil)
		sum.MaxResidual = floats.Max(s.Residuals)
	}
	return sum
}
