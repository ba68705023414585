package trajectory

import (
	"math"
	"testing"

	"github.com/forPelevin/reframe/internal/types"
)

func positionsFromXs(xs []float64) []types.Position {
	out := make([]types.Position, len(xs))
	for i, x := range xs {
		out[i] = types.Position{
			Frame:      i * 15,
			Timestamp:  float64(i) * 0.5,
			X:          x,
			Y:          0.4,
			Confidence: 0.9,
		}
	}
	return out
}

func TestSmooth_ShortInputUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		xs     []float64
		window int
	}{
		{"empty", nil, 5},
		{"one", []float64{0.3}, 5},
		{"two", []float64{0.3, 0.7}, 5},
		{"window one", []float64{0.3, 0.7, 0.1, 0.9}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := positionsFromXs(tt.xs)
			got := Smooth(in, tt.window)
			if len(got) != len(in) {
				t.Fatalf("length changed: got %d, want %d", len(got), len(in))
			}
			for i := range got {
				if got[i] != in[i] {
					t.Fatalf("position %d changed: got %+v, want %+v", i, got[i], in[i])
				}
			}
		})
	}
}

func TestSmooth_KnownWindow(t *testing.T) {
	// Window 3 over [0,1,0] pads to [0,0,1,0,0]; every average is 1/3.
	got := Smooth(positionsFromXs([]float64{0, 1, 0}), 3)
	want := 1.0 / 3.0
	for i, p := range got {
		if math.Abs(p.X-want) > 1e-12 {
			t.Fatalf("position %d: x = %v, want %v", i, p.X, want)
		}
	}
}

func TestSmooth_EvenWindowKeepsLength(t *testing.T) {
	got := Smooth(positionsFromXs([]float64{0, 1, 0, 1}), 4)
	if len(got) != 4 {
		t.Fatalf("length = %d, want 4", len(got))
	}
	// Pads to [0,0,0,1,0,1,1,1]; averages of each 4-wide window.
	want := []float64{0.25, 0.25, 0.5, 0.75}
	for i, p := range got {
		if math.Abs(p.X-want[i]) > 1e-12 {
			t.Fatalf("position %d: x = %v, want %v", i, p.X, want[i])
		}
	}
}

func TestSmooth_ConstantStaysConstant(t *testing.T) {
	in := positionsFromXs([]float64{0.6, 0.6, 0.6, 0.6, 0.6, 0.6})
	for _, window := range []int{3, 5, 7} {
		got := Smooth(in, window)
		for i, p := range got {
			if math.Abs(p.X-0.6) > 1e-12 || math.Abs(p.Y-0.4) > 1e-12 {
				t.Fatalf("window %d position %d drifted: %+v", window, i, p)
			}
		}
	}
}

func TestSmooth_ReducesJitter(t *testing.T) {
	in := positionsFromXs([]float64{0.2, 0.8, 0.2, 0.8, 0.2, 0.8, 0.2, 0.8})
	got := Smooth(in, 5)
	if len(got) != len(in) {
		t.Fatalf("length = %d, want %d", len(got), len(in))
	}
	maxIn := maxAdjacentDelta(in)
	maxOut := maxAdjacentDelta(got)
	if maxOut >= maxIn {
		t.Fatalf("smoothing did not reduce max adjacent delta: in %v, out %v", maxIn, maxOut)
	}
}

func TestSmooth_DoesNotMutateInput(t *testing.T) {
	in := positionsFromXs([]float64{0.1, 0.9, 0.1, 0.9, 0.1})
	orig := make([]types.Position, len(in))
	copy(orig, in)

	Smooth(in, 5)
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("input position %d mutated: got %+v, want %+v", i, in[i], orig[i])
		}
	}
}

func TestSmooth_CopiesOtherFieldsThrough(t *testing.T) {
	in := positionsFromXs([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	got := Smooth(in, 3)
	for i := range got {
		if got[i].Frame != in[i].Frame || got[i].Timestamp != in[i].Timestamp || got[i].Confidence != in[i].Confidence {
			t.Fatalf("position %d lost metadata: got %+v, want frame=%d ts=%v conf=%v",
				i, got[i], in[i].Frame, in[i].Timestamp, in[i].Confidence)
		}
	}
}

func maxAdjacentDelta(ps []types.Position) float64 {
	var max float64
	for i := 1; i < len(ps); i++ {
		d := math.Abs(ps[i].X - ps[i-1].X)
		if d > max {
			max = d
		}
	}
	return max
}
