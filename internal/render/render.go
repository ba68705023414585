// Package render holds the two output strategies: one fixed crop encoded in
// a single pass, and a per-frame crop trail encoded silent and muxed with the
// source audio afterwards.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/forPelevin/reframe/internal/domain/geometry"
	"github.com/forPelevin/reframe/internal/domain/trajectory"
	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/types"
)

// ErrFailed marks any rendering failure. Strategies delete partial outputs
// before returning it; the wrapped chain keeps the tool diagnostics.
var ErrFailed = errors.New("render failed")

// Job carries what both strategies need to produce one clip.
type Job struct {
	SourcePath string
	OutputPath string
	Start      float64
	End        float64

	Source      types.VideoInfo
	TargetRatio float64
	Target      types.Resolution
}

// Report tells the caller what a render actually did.
type Report struct {
	FramesWritten int
}

// Strategy is one of the two render modes. The orchestrator picks exactly
// one per request; there is no mode switching mid-render.
type Strategy interface {
	Render(ctx context.Context, video ports.VideoTool, job Job) (Report, error)
	Mode() string
}

// Static renders one fixed crop with a single blocking encode.
type Static struct {
	Crop types.CropRect
}

func (s Static) Mode() string { return types.ModeStatic }

func (s Static) Render(ctx context.Context, video ports.VideoTool, job Job) (Report, error) {
	if err := video.RenderCropped(ctx, job.SourcePath, job.Start, job.End, s.Crop, job.Target, job.OutputPath); err != nil {
		removeIfExists(job.OutputPath)
		return Report{}, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	if err := verifyOutput(job.OutputPath); err != nil {
		return Report{}, err
	}
	return Report{}, nil
}

// Dynamic renders a moving crop: every source frame is cropped around its
// trail point, scaled to target and written to a silent intermediate, then
// the source audio is muxed back in. Frames are processed strictly in
// presentation order.
type Dynamic struct {
	Trail    []trajectory.TrailPoint
	Progress func(done, total int)
}

func (d Dynamic) Mode() string { return types.ModeDynamic }

func (d Dynamic) Render(ctx context.Context, video ports.VideoTool, job Job) (Report, error) {
	if len(d.Trail) == 0 {
		return Report{}, fmt.Errorf("%w: empty crop trail", ErrFailed)
	}

	tmp := tempOutputPath(job.OutputPath)
	written, err := d.renderSilent(ctx, video, job, tmp)
	if err != nil {
		removeIfExists(tmp)
		return Report{}, err
	}

	err = video.MuxAudio(ctx, tmp, job.SourcePath, job.Start, job.End, job.OutputPath)
	removeIfExists(tmp)
	if err != nil {
		removeIfExists(job.OutputPath)
		return Report{}, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	if err := verifyOutput(job.OutputPath); err != nil {
		return Report{}, err
	}
	return Report{FramesWritten: written}, nil
}

func (d Dynamic) renderSilent(ctx context.Context, video ports.VideoTool, job Job, tmp string) (int, error) {
	r, err := video.OpenFrames(ctx, job.SourcePath, ports.FrameOptions{Start: job.Start, End: job.End})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	defer r.Close()

	w, err := video.NewFrameWriter(ctx, tmp, ports.WriterOptions{
		Width:  job.Target.Width,
		Height: job.Target.Height,
		FPS:    job.Source.FPS,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	written := 0
	for _, tp := range d.Trail {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			// The decoder ran short of the trail; keep what we have,
			// the mux trims audio to match.
			break
		}
		if err != nil {
			_ = w.Close()
			return 0, fmt.Errorf("%w: %w", ErrFailed, err)
		}

		crop := geometry.Compute(job.Source.Width, job.Source.Height, tp.X, tp.Y, job.TargetRatio)
		if err := w.Write(scaleCrop(frame, crop, job.Target)); err != nil {
			_ = w.Close()
			return 0, fmt.Errorf("%w: %w", ErrFailed, err)
		}
		written++
		if d.Progress != nil {
			d.Progress(written, len(d.Trail))
		}
	}

	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailed, err)
	}
	return written, nil
}

// scaleCrop cuts the crop window out of frame and scales it to the target
// resolution with bilinear filtering.
func scaleCrop(frame *image.RGBA, crop types.CropRect, target types.Resolution) *image.RGBA {
	src := frame.SubImage(image.Rect(crop.X, crop.Y, crop.X+crop.Width, crop.Y+crop.Height))
	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// tempOutputPath places the silent intermediate next to the real output so
// the final mux stays on one filesystem.
func tempOutputPath(outPath string) string {
	dir := filepath.Dir(outPath)
	base := strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
	return filepath.Join(dir, base+"_temp_"+uuid.NewString()+".mp4")
}

func verifyOutput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: output missing after encode: %v", ErrFailed, err)
	}
	return nil
}

func removeIfExists(path string) {
	_ = os.Remove(path)
}
