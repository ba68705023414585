package trajectory

import (
	"math"

	"github.com/forPelevin/reframe/internal/types"
)

// Resample expands sampled centers into one center per output frame over
// [start, end]. The frame count is round((end-start)*fps).
//
// With no samples every frame holds fallback, timestamped start + i/fps.
// Otherwise frame timestamps are spread evenly across the window, inclusive
// of both ends, and centers are interpolated linearly between neighboring
// samples, holding the first and last sampled values outside their range.
func Resample(positions []types.Position, fps, start, end float64, fallback Point) []TrailPoint {
	count := int(math.Round((end - start) * fps))
	if count <= 0 {
		return nil
	}

	out := make([]TrailPoint, 0, count)
	if len(positions) == 0 {
		for i := 0; i < count; i++ {
			out = append(out, TrailPoint{
				Timestamp: start + float64(i)/fps,
				X:         fallback.X,
				Y:         fallback.Y,
			})
		}
		return out
	}

	ts := make([]float64, len(positions))
	xs := make([]float64, len(positions))
	ys := make([]float64, len(positions))
	for i, p := range positions {
		ts[i] = p.Timestamp
		xs[i] = p.X
		ys[i] = p.Y
	}

	for i := 0; i < count; i++ {
		t := start
		if count > 1 {
			t = start + (end-start)*float64(i)/float64(count-1)
		}
		out = append(out, TrailPoint{Timestamp: t, X: interpAt(t, ts, xs), Y: interpAt(t, ts, ys)})
	}
	return out
}

// interpAt linearly interpolates vs over ts at t, holding edge values
// outside the sampled range. ts must be ascending.
func interpAt(t float64, ts, vs []float64) float64 {
	if t <= ts[0] {
		return vs[0]
	}
	last := len(ts) - 1
	if t >= ts[last] {
		return vs[last]
	}
	for i := 1; i <= last; i++ {
		if t <= ts[i] {
			span := ts[i] - ts[i-1]
			if span <= 0 {
				return vs[i]
			}
			frac := (t - ts[i-1]) / span
			return vs[i-1] + frac*(vs[i]-vs[i-1])
		}
	}
	return vs[last]
}
