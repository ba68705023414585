package geometry

import (
	"fmt"

	"github.com/forPelevin/reframe/internal/types"
)

// Compute derives the crop window for one subject center.
//
// The crop is the largest ratio-true window that fits the source: height is
// pinned when the source is wider than the target ratio, width otherwise.
// The window is centered on (centerX, centerY), given in normalized [0,1]
// coordinates, and clamped so it never leaves the frame.
func Compute(srcW, srcH int, centerX, centerY, ratio float64) types.CropRect {
	srcRatio := float64(srcW) / float64(srcH)

	var cropW, cropH int
	if srcRatio > ratio {
		cropH = srcH
		cropW = int(float64(srcH) * ratio)
	} else {
		cropW = srcW
		cropH = int(float64(srcW) / ratio)
	}

	x := int(centerX*float64(srcW)) - cropW/2
	y := int(centerY*float64(srcH)) - cropH/2

	x = clamp(x, 0, srcW-cropW)
	y = clamp(y, 0, srcH-cropH)

	return types.CropRect{X: x, Y: y, Width: cropW, Height: cropH}
}

// Filter renders the ffmpeg crop+scale filter chain for a crop window.
func Filter(crop types.CropRect, target types.Resolution) string {
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d",
		crop.Width, crop.Height, crop.X, crop.Y, target.Width, target.Height)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
