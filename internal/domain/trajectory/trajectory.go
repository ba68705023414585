// Package trajectory turns sparse subject detections into a crop trail:
// smoothing against jitter, then resampling to one center per output frame.
package trajectory

import "github.com/forPelevin/reframe/internal/types"

// Point is a normalized subject center.
type Point struct {
	X float64
	Y float64
}

// DefaultCenter is the crop center used when nothing was detected. It sits
// slightly above the geometric middle, where faces tend to be.
var DefaultCenter = Point{X: 0.5, Y: 0.4}

// TrailPoint is one output-frame center on the interpolated trail.
type TrailPoint struct {
	Timestamp float64
	X         float64
	Y         float64
}

// Mean averages detected centers into the single center a static crop uses.
func Mean(positions []types.Position) Point {
	if len(positions) == 0 {
		return DefaultCenter
	}
	var sx, sy float64
	for _, p := range positions {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(positions))
	return Point{X: sx / n, Y: sy / n}
}
