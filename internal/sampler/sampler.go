// Package sampler walks a time window of the source at a fixed interval and
// records where the detector sees the subject.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/types"
)

type Sampler struct {
	video    ports.VideoTool
	detector ports.FaceDetector
}

func New(video ports.VideoTool, detector ports.FaceDetector) *Sampler {
	return &Sampler{video: video, detector: detector}
}

// Sample decodes one frame per interval across [start, end] and returns the
// strongest detection per frame, normalized to the frame dimensions. Frames
// without hits contribute nothing; an empty result is not an error.
// end <= 0 samples to the end of the source.
//
// The source is opened once and the decoder thins the stream itself, so only
// sampled frames are decoded into memory. The reader is released on every
// path. With a nil detector Sample reports no positions.
func (s *Sampler) Sample(ctx context.Context, path string, interval, start, end float64) ([]types.Position, error) {
	if s.detector == nil {
		return nil, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %v", interval)
	}

	r, err := s.video.OpenFrames(ctx, path, ports.FrameOptions{
		Start:          start,
		End:            end,
		SampleInterval: interval,
	})
	if err != nil {
		return nil, fmt.Errorf("open source for sampling: %w", err)
	}
	defer r.Close()

	info := r.Info()
	if end <= 0 {
		end = info.Duration
	}
	step := int(math.Round(interval * info.FPS))
	if step < 1 {
		step = 1
	}
	startFrame := int(start * info.FPS)
	endFrame := int(end * info.FPS)

	var positions []types.Position
	for i := 0; ; i++ {
		frameIdx := startFrame + i*step
		if frameIdx >= endFrame {
			break
		}

		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sample frame %d: %w", frameIdx, err)
		}

		dets, err := s.detector.Detect(frame)
		if err != nil {
			return nil, fmt.Errorf("detect on frame %d: %w", frameIdx, err)
		}
		if len(dets) == 0 {
			continue
		}

		best := dets[0]
		for _, d := range dets[1:] {
			if d.Confidence > best.Confidence {
				best = d
			}
		}

		fb := frame.Bounds()
		w, h := float64(fb.Dx()), float64(fb.Dy())
		bb := best.Bounds
		positions = append(positions, types.Position{
			Frame:      frameIdx,
			Timestamp:  float64(frameIdx) / info.FPS,
			X:          (float64(bb.Min.X) + float64(bb.Dx())/2) / w,
			Y:          (float64(bb.Min.Y) + float64(bb.Dy())/2) / h,
			Width:      float64(bb.Dx()) / w,
			Height:     float64(bb.Dy()) / h,
			Confidence: best.Confidence,
		})
	}
	return positions, nil
}
