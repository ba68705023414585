package trajectory

import "github.com/forPelevin/reframe/internal/types"

// Smooth applies a centered moving average to the detected centers.
//
// Inputs shorter than three positions, or a window below 2, come back
// unchanged. Edges are padded by replicating the first and last centers so
// the output keeps the input length. The input slice is never mutated;
// fields other than X and Y are copied through.
func Smooth(positions []types.Position, window int) []types.Position {
	n := len(positions)
	if n < 3 || window < 2 {
		return positions
	}

	pad := window / 2
	xs := make([]float64, 0, n+2*pad)
	ys := make([]float64, 0, n+2*pad)
	for i := 0; i < pad; i++ {
		xs = append(xs, positions[0].X)
		ys = append(ys, positions[0].Y)
	}
	for _, p := range positions {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	for i := 0; i < pad; i++ {
		xs = append(xs, positions[n-1].X)
		ys = append(ys, positions[n-1].Y)
	}

	out := make([]types.Position, n)
	for i := 0; i < n; i++ {
		var sx, sy float64
		for j := i; j < i+window; j++ {
			sx += xs[j]
			sy += ys[j]
		}
		out[i] = positions[i]
		out[i].X = sx / float64(window)
		out[i].Y = sy / float64(window)
	}
	return out
}
