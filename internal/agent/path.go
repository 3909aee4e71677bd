package agent

import (
	"fmt"

	"railsim/internal/geo"
)

// Path is an ordered sequence of geographic points describing a route.
// It is immutable once assigned to an agent.
type Path []geo.Point

// Validate checks that the path can be simulated. Fewer than two points would
// leave no segment to interpolate over.
func (p Path) Validate() error {
	if len(p) < 2 {
		return fmt.Errorf("path needs at least 2 points, got %d", len(p))
	}
	return nil
}

// At maps a progress fraction in [0,1] to a position on the path and the
// bearing of the segment containing it. Progress outside the range snaps to
// the corresponding endpoint.
func (p Path) At(progress float64) (geo.Point, float64) {
	n := len(p)
	segCount := n - 1
	if progress <= 0 {
		return p[0], geo.Bearing(p[0], p[1])
	}
	if progress >= 1 {
		return p[n-1], geo.Bearing(p[n-2], p[n-1])
	}
	idx := int(progress * float64(segCount))
	if idx >= segCount {
		idx = segCount - 1
	}
	local := progress*float64(segCount) - float64(idx)
	a, b := p[idx], p[idx+1]
	return geo.Interpolate(a, b, local), geo.Bearing(a, b)
}

// LengthMeters returns the total great-circle length of the path.
func (p Path) LengthMeters() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += geo.DistanceMeters(p[i-1], p[i])
	}
	return total
}
