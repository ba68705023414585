// Package usecase wires sampling, trajectory shaping and rendering into the
// reframe operation.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/reframe/internal/domain/geometry"
	"github.com/forPelevin/reframe/internal/domain/trajectory"
	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/render"
	"github.com/forPelevin/reframe/internal/sampler"
	"github.com/forPelevin/reframe/internal/types"
)

const (
	defaultStaticWindow   = 5
	defaultDynamicWindow  = 7
	defaultSampleInterval = 0.5
)

var defaultTarget = types.Resolution{Width: 1080, Height: 1920}

// Options tune a Reframer. Zero values fall back to the documented defaults.
type Options struct {
	// DefaultCenter is the crop center used when tracking finds nothing.
	DefaultCenter trajectory.Point
	// SmoothingWindow is the moving-average width in static mode.
	SmoothingWindow int
	// DynamicSmoothingWindow is the moving-average width in dynamic mode,
	// wider because every wobble ends up on screen.
	DynamicSmoothingWindow int
	// SampleInterval is the default seconds between detection samples.
	SampleInterval float64
	// Target is the default output resolution.
	Target types.Resolution
	// Logf receives progress notes; nil disables them.
	Logf func(format string, args ...any)
	// Progress receives dynamic render progress; nil disables it.
	Progress func(done, total int)
}

// Reframer runs subject-centered reframe jobs synchronously, one at a time.
// The detector contract makes no concurrency promises, so callers wanting
// parallelism build one Reframer (and one detector) per goroutine.
type Reframer struct {
	video    ports.VideoTool
	detector ports.FaceDetector
	sampler  *sampler.Sampler
	opts     Options
}

// New builds a Reframer. detector may be nil, which disables tracking and
// sends every request down the default-center static path.
func New(video ports.VideoTool, detector ports.FaceDetector, opts Options) *Reframer {
	if opts.DefaultCenter == (trajectory.Point{}) {
		opts.DefaultCenter = trajectory.DefaultCenter
	}
	if opts.SmoothingWindow <= 0 {
		opts.SmoothingWindow = defaultStaticWindow
	}
	if opts.DynamicSmoothingWindow <= 0 {
		opts.DynamicSmoothingWindow = defaultDynamicWindow
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = defaultSampleInterval
	}
	if opts.Target.Width <= 0 || opts.Target.Height <= 0 {
		opts.Target = defaultTarget
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Reframer{
		video:    video,
		detector: detector,
		sampler:  sampler.New(video, detector),
		opts:     opts,
	}
}

// Reframe produces one subject-centered clip and blocks until it is done.
//
// An unavailable detector or a window with no detections falls back to a
// static crop at the default center; the result then reports
// TrackingUsed=false. An unreadable source or a render failure is fatal;
// render failures leave no partial files behind.
func (r *Reframer) Reframe(ctx context.Context, req types.ReframeRequest) (types.ReframeResult, error) {
	if err := validate(req); err != nil {
		return types.ReframeResult{}, err
	}

	info, err := r.video.Probe(ctx, req.SourcePath)
	if err != nil {
		return types.ReframeResult{}, err
	}
	r.opts.Logf("source: %dx%d @ %.2f fps, %.2fs", info.Width, info.Height, info.FPS, info.Duration)

	start := req.StartTime
	end := req.EndTime
	if end <= 0 {
		end = info.Duration
	}
	if end < start {
		return types.ReframeResult{}, fmt.Errorf("end %.3f precedes start %.3f", end, start)
	}

	target := req.Target
	if target.Width <= 0 || target.Height <= 0 {
		target = r.opts.Target
	}
	ratio := req.TargetRatio
	if ratio <= 0 {
		ratio = float64(target.Width) / float64(target.Height)
	}
	interval := req.SampleInterval
	if interval <= 0 {
		interval = r.opts.SampleInterval
	}

	var positions []types.Position
	if req.TrackingEnabled && r.detector != nil {
		positions, err = r.sampler.Sample(ctx, req.SourcePath, interval, start, end)
		if err != nil {
			return types.ReframeResult{}, err
		}
		r.opts.Logf("sampled %d subject positions", len(positions))
	} else if req.TrackingEnabled {
		r.opts.Logf("detector unavailable, using center crop")
	}

	job := render.Job{
		SourcePath:  req.SourcePath,
		OutputPath:  req.OutputPath,
		Start:       start,
		End:         end,
		Source:      info,
		TargetRatio: ratio,
		Target:      target,
	}

	res := types.ReframeResult{
		OutputPath:        req.OutputPath,
		StartTime:         start,
		EndTime:           end,
		Duration:          end - start,
		PositionsDetected: len(positions),
	}

	var strategy render.Strategy
	switch {
	case len(positions) == 0:
		if req.TrackingEnabled && r.detector != nil {
			r.opts.Logf("no subject found, using center crop")
		}
		crop := geometry.Compute(info.Width, info.Height, r.opts.DefaultCenter.X, r.opts.DefaultCenter.Y, ratio)
		res.Crop = &crop
		strategy = render.Static{Crop: crop}
	case req.DynamicMode:
		smoothed := trajectory.Smooth(positions, r.opts.DynamicSmoothingWindow)
		trail := trajectory.Resample(smoothed, info.FPS, start, end, r.opts.DefaultCenter)
		res.TrackingUsed = true
		strategy = render.Dynamic{Trail: trail, Progress: r.opts.Progress}
	default:
		smoothed := trajectory.Smooth(positions, r.opts.SmoothingWindow)
		center := trajectory.Mean(smoothed)
		r.opts.Logf("tracking centered at (%.3f, %.3f)", center.X, center.Y)
		crop := geometry.Compute(info.Width, info.Height, center.X, center.Y, ratio)
		res.Crop = &crop
		res.TrackingUsed = true
		strategy = render.Static{Crop: crop}
	}

	res.Mode = strategy.Mode()
	r.opts.Logf("rendering %s crop to %s", res.Mode, req.OutputPath)

	rep, err := strategy.Render(ctx, r.video, job)
	if err != nil {
		return types.ReframeResult{}, err
	}
	res.FramesProcessed = rep.FramesWritten
	return res, nil
}

func validate(req types.ReframeRequest) error {
	if req.SourcePath == "" {
		return errors.New("source path is empty")
	}
	if req.OutputPath == "" {
		return errors.New("output path is empty")
	}
	if req.StartTime < 0 {
		return fmt.Errorf("start time %.3f is negative", req.StartTime)
	}
	if req.EndTime > 0 && req.EndTime < req.StartTime {
		return fmt.Errorf("end time %.3f precedes start time %.3f", req.EndTime, req.StartTime)
	}
	return nil
}
