// Package pigo adapts the esimov/pigo cascade classifier to the FaceDetector
// port. Detection runs fully in-process on grayscale pixels; no external
// tools and no network.
package pigo

import (
	"fmt"
	"image"
	"os"

	pigocore "github.com/esimov/pigo/core"

	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/types"
)

// Options tune the cascade. Zero values pick defaults suited to
// interview-style footage.
type Options struct {
	// MinSize is the smallest face edge in pixels. 0 derives it from the
	// frame: 1% of the short edge, at least 20.
	MinSize int
	// MaxSize caps the face edge in pixels. 0 uses the frame's short edge.
	MaxSize int
	// ShiftFactor moves the detection window by this fraction of its size.
	ShiftFactor float64
	// ScaleFactor grows the detection window between scans.
	ScaleFactor float64
	// IoUThreshold merges overlapping hits into one cluster.
	IoUThreshold float64
	// MinQuality drops weak clusters; pigo scores below ~10 are noise.
	MinQuality float32
}

type Adapter struct {
	classifier *pigocore.Pigo
	opts       Options
}

// New loads a binary cascade from path. A missing or corrupt cascade is a
// construction error; callers are expected to degrade to running without
// detection rather than abort.
func New(cascadePath string, opts Options) (*Adapter, error) {
	b, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	classifier, err := pigocore.NewPigo().Unpack(b)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade %s: %w", cascadePath, err)
	}
	return &Adapter{classifier: classifier, opts: withDefaults(opts)}, nil
}

var _ ports.FaceDetector = (*Adapter)(nil)

// Detect runs the cascade over one frame and returns clustered hits. The
// classifier is read-only after Unpack, so Detect is safe for concurrent use.
func (a *Adapter) Detect(frame *image.RGBA) ([]types.Detection, error) {
	b := frame.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	minSize, maxSize := a.sizeRange(rows, cols)
	params := pigocore.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: a.opts.ShiftFactor,
		ScaleFactor: a.opts.ScaleFactor,
		ImageParams: pigocore.ImageParams{
			Pixels: pigocore.RgbToGrayscale(frame),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := a.classifier.RunCascade(params, 0.0)
	dets = a.classifier.ClusterDetections(dets, a.opts.IoUThreshold)
	return toDetections(dets, a.opts.MinQuality), nil
}

func withDefaults(opts Options) Options {
	if opts.ShiftFactor <= 0 {
		opts.ShiftFactor = 0.1
	}
	if opts.ScaleFactor <= 0 {
		opts.ScaleFactor = 1.1
	}
	if opts.IoUThreshold <= 0 {
		opts.IoUThreshold = 0.2
	}
	if opts.MinQuality <= 0 {
		opts.MinQuality = 10
	}
	return opts
}

func (a *Adapter) sizeRange(rows, cols int) (int, int) {
	short := rows
	if cols < short {
		short = cols
	}
	minSize := a.opts.MinSize
	if minSize <= 0 {
		minSize = short / 100
		if minSize < 20 {
			minSize = 20
		}
	}
	maxSize := a.opts.MaxSize
	if maxSize <= 0 {
		maxSize = short
	}
	return minSize, maxSize
}

// toDetections converts pigo's center+scale hits into pixel rectangles and a
// confidence in [0,1], scaling quality against a nominal maximum of 100.
func toDetections(dets []pigocore.Detection, minQuality float32) []types.Detection {
	var out []types.Detection
	for _, d := range dets {
		if d.Q < minQuality {
			continue
		}
		half := d.Scale / 2
		conf := float64(d.Q) / 100
		if conf > 1 {
			conf = 1
		}
		out = append(out, types.Detection{
			Bounds:     image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half),
			Confidence: conf,
		})
	}
	return out
}
