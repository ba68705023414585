package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/render"
	"github.com/forPelevin/reframe/internal/types"
)

func TestReframe_TrackingDisabledFallsBackToCenter(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: landscapeInfo()}
	r := New(video, &fakeDetector{}, Options{})

	res, err := r.Reframe(context.Background(), request(t, func(req *types.ReframeRequest) {
		req.TrackingEnabled = false
	}))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	if video.opens != 0 {
		t.Fatalf("decoder opened %d times with tracking disabled, want 0", video.opens)
	}
	if res.TrackingUsed {
		t.Fatal("TrackingUsed = true, want false")
	}
	if res.PositionsDetected != 0 {
		t.Fatalf("PositionsDetected = %d, want 0", res.PositionsDetected)
	}
	assertCenterFallback(t, video, res)
}

func TestReframe_NilDetectorFallsBackToCenter(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: landscapeInfo()}
	r := New(video, nil, Options{})

	res, err := r.Reframe(context.Background(), request(t, nil))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	if video.opens != 0 {
		t.Fatalf("decoder opened %d times with nil detector, want 0", video.opens)
	}
	if res.TrackingUsed {
		t.Fatal("TrackingUsed = true, want false")
	}
	assertCenterFallback(t, video, res)
}

func TestReframe_NoDetectionsFallsBackToCenter(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: landscapeInfo(), frameCount: 16}
	det := &fakeDetector{} // never finds anything
	r := New(video, det, Options{})

	res, err := r.Reframe(context.Background(), request(t, nil))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	if video.opens != 1 {
		t.Fatalf("decoder opened %d times, want 1 (sampling ran)", video.opens)
	}
	if det.calls == 0 {
		t.Fatal("detector never consulted")
	}
	if video.lastOpts.SampleInterval != 0.5 {
		t.Fatalf("sample interval = %v, want default 0.5", video.lastOpts.SampleInterval)
	}
	if res.TrackingUsed {
		t.Fatal("TrackingUsed = true after zero detections, want false")
	}
	if res.PositionsDetected != 0 {
		t.Fatalf("PositionsDetected = %d, want 0", res.PositionsDetected)
	}
	assertCenterFallback(t, video, res)
}

func TestReframe_StaticTracksSubject(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{
		info:       types.VideoInfo{Width: 640, Height: 360, FPS: 4, Duration: 60},
		frameCount: 16,
	}
	// Subject centered at (0.25, 0.5) of the source on every sampled frame.
	det := &fakeDetector{dets: []types.Detection{
		{Bounds: image.Rect(128, 148, 192, 212), Confidence: 0.8},
	}}
	r := New(video, det, Options{})

	res, err := r.Reframe(context.Background(), request(t, nil))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	// 1s..3s at 4 fps sampled every 0.5s lands on frames 4, 6, 8 and 10.
	if res.PositionsDetected != 4 {
		t.Fatalf("PositionsDetected = %d, want 4", res.PositionsDetected)
	}
	if !res.TrackingUsed {
		t.Fatal("TrackingUsed = false, want true")
	}
	if res.Mode != types.ModeStatic {
		t.Fatalf("Mode = %q, want %q", res.Mode, types.ModeStatic)
	}

	want := types.CropRect{X: 59, Y: 0, Width: 202, Height: 360}
	if len(video.renderCalls) != 1 {
		t.Fatalf("RenderCropped called %d times, want 1", len(video.renderCalls))
	}
	if got := video.renderCalls[0].crop; got != want {
		t.Fatalf("rendered crop = %+v, want %+v", got, want)
	}
	if res.Crop == nil || *res.Crop != want {
		t.Fatalf("result crop = %+v, want %+v", res.Crop, want)
	}
}

func TestReframe_DynamicFollowsTrail(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out.mp4")
	video := &fakeVideoTool{
		info:       types.VideoInfo{Width: 64, Height: 36, FPS: 4, Duration: 60},
		frameCount: 16,
	}
	det := &fakeDetector{dets: []types.Detection{
		{Bounds: image.Rect(12, 10, 28, 26), Confidence: 0.9},
	}}

	var progress [][2]int
	r := New(video, det, Options{
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})

	res, err := r.Reframe(context.Background(), request(t, func(req *types.ReframeRequest) {
		req.OutputPath = out
		req.DynamicMode = true
		req.Target = types.Resolution{Width: 18, Height: 32}
	}))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	if res.Mode != types.ModeDynamic {
		t.Fatalf("Mode = %q, want %q", res.Mode, types.ModeDynamic)
	}
	if !res.TrackingUsed {
		t.Fatal("TrackingUsed = false, want true")
	}
	if res.Crop != nil {
		t.Fatalf("dynamic result carries a crop: %+v", res.Crop)
	}

	// Two seconds at 4 fps resample to 8 output frames.
	if res.FramesProcessed != 8 {
		t.Fatalf("FramesProcessed = %d, want 8", res.FramesProcessed)
	}
	if video.opens != 2 {
		t.Fatalf("decoder opened %d times, want 2 (sampling then render)", video.opens)
	}
	if got := writerFrames(video); got != 8 {
		t.Fatalf("writer got %d frames, want 8", got)
	}
	if len(video.muxCalls) != 1 {
		t.Fatalf("MuxAudio called %d times, want 1", len(video.muxCalls))
	}
	if len(progress) != 8 || progress[len(progress)-1] != [2]int{8, 8} {
		t.Fatalf("progress calls = %v, want 8 calls ending at (8, 8)", progress)
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(video.writerPath); !os.IsNotExist(err) {
		t.Fatalf("temp render %s not removed (stat err %v)", video.writerPath, err)
	}
}

func TestReframe_RenderFailureIsFatal(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: landscapeInfo(), renderErr: errors.New("exit status 1")}
	r := New(video, nil, Options{})

	_, err := r.Reframe(context.Background(), request(t, nil))
	if !errors.Is(err, render.ErrFailed) {
		t.Fatalf("err = %v, want render.ErrFailed", err)
	}
}

func TestReframe_UnreadableSourceIsFatal(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{
		probeErr: fmt.Errorf("ffprobe src.mp4: %w: exit status 1", ports.ErrSourceUnreadable),
	}
	det := &fakeDetector{dets: []types.Detection{
		{Bounds: image.Rect(0, 0, 10, 10), Confidence: 0.9},
	}}
	r := New(video, det, Options{})

	_, err := r.Reframe(context.Background(), request(t, nil))
	if !errors.Is(err, ports.ErrSourceUnreadable) {
		t.Fatalf("err = %v, want ports.ErrSourceUnreadable", err)
	}
	if video.opens != 0 || len(video.renderCalls) != 0 {
		t.Fatal("work continued after probe failure")
	}
}

func TestReframe_SamplerErrorIsFatal(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: landscapeInfo(), frameCount: 16}
	det := &fakeDetector{err: errors.New("cascade corrupt")}
	r := New(video, det, Options{})

	_, err := r.Reframe(context.Background(), request(t, nil))
	if err == nil || !errors.Is(err, det.err) {
		t.Fatalf("err = %v, want detector failure", err)
	}
	if len(video.renderCalls) != 0 {
		t.Fatal("render ran after sampling failure")
	}
}

func TestReframe_EndDefaultsToSourceDuration(t *testing.T) {
	t.Parallel()

	video := &fakeVideoTool{info: types.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 42.5}}
	r := New(video, nil, Options{})

	res, err := r.Reframe(context.Background(), request(t, func(req *types.ReframeRequest) {
		req.StartTime = 2
		req.EndTime = 0
	}))
	if err != nil {
		t.Fatalf("reframe: %v", err)
	}

	if res.EndTime != 42.5 {
		t.Fatalf("EndTime = %v, want source duration 42.5", res.EndTime)
	}
	if res.Duration != 40.5 {
		t.Fatalf("Duration = %v, want 40.5", res.Duration)
	}
	if got := video.renderCalls[0]; got.start != 2 || got.end != 42.5 {
		t.Fatalf("render window = [%v, %v], want [2, 42.5]", got.start, got.end)
	}
}

func TestReframe_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*types.ReframeRequest)
	}{
		{name: "empty source", mutate: func(req *types.ReframeRequest) { req.SourcePath = "" }},
		{name: "empty output", mutate: func(req *types.ReframeRequest) { req.OutputPath = "" }},
		{name: "negative start", mutate: func(req *types.ReframeRequest) { req.StartTime = -1 }},
		{name: "end before start", mutate: func(req *types.ReframeRequest) { req.StartTime = 5; req.EndTime = 3 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			video := &fakeVideoTool{info: landscapeInfo()}
			r := New(video, nil, Options{})

			_, err := r.Reframe(context.Background(), request(t, tc.mutate))
			if err == nil {
				t.Fatal("invalid request accepted")
			}
			if video.probes != 0 || len(video.renderCalls) != 0 {
				t.Fatal("invalid request reached the video tool")
			}
		})
	}
}

func TestNew_ZeroOptionsGetDefaults(t *testing.T) {
	t.Parallel()

	r := New(&fakeVideoTool{}, nil, Options{})

	if r.opts.DefaultCenter.X != 0.5 || r.opts.DefaultCenter.Y != 0.4 {
		t.Fatalf("DefaultCenter = %+v, want (0.5, 0.4)", r.opts.DefaultCenter)
	}
	if r.opts.SmoothingWindow != 5 || r.opts.DynamicSmoothingWindow != 7 {
		t.Fatalf("windows = %d/%d, want 5/7", r.opts.SmoothingWindow, r.opts.DynamicSmoothingWindow)
	}
	if r.opts.SampleInterval != 0.5 {
		t.Fatalf("SampleInterval = %v, want 0.5", r.opts.SampleInterval)
	}
	if r.opts.Target != (types.Resolution{Width: 1080, Height: 1920}) {
		t.Fatalf("Target = %+v, want 1080x1920", r.opts.Target)
	}
	if r.opts.Logf == nil {
		t.Fatal("Logf not defaulted")
	}
}

// request builds a valid baseline request, then lets the test bend it.
func request(t *testing.T, mutate func(*types.ReframeRequest)) types.ReframeRequest {
	t.Helper()
	req := types.ReframeRequest{
		SourcePath:      "src.mp4",
		OutputPath:      filepath.Join(t.TempDir(), "out.mp4"),
		StartTime:       1,
		EndTime:         3,
		TrackingEnabled: true,
	}
	if mutate != nil {
		mutate(&req)
	}
	return req
}

func landscapeInfo() types.VideoInfo {
	return types.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 60}
}

// assertCenterFallback checks the static render used the default center
// (0.5, 0.4) on a 1920x1080 source at the default 1080x1920 target.
func assertCenterFallback(t *testing.T, video *fakeVideoTool, res types.ReframeResult) {
	t.Helper()

	want := types.CropRect{X: 657, Y: 0, Width: 607, Height: 1080}
	if len(video.renderCalls) != 1 {
		t.Fatalf("RenderCropped called %d times, want 1", len(video.renderCalls))
	}
	if got := video.renderCalls[0].crop; got != want {
		t.Fatalf("fallback crop = %+v, want %+v", got, want)
	}
	if res.Mode != types.ModeStatic {
		t.Fatalf("Mode = %q, want %q", res.Mode, types.ModeStatic)
	}
	if res.Crop == nil || *res.Crop != want {
		t.Fatalf("result crop = %+v, want %+v", res.Crop, want)
	}
}

func writerFrames(video *fakeVideoTool) int {
	if len(video.writers) != 1 {
		return -1
	}
	return video.writers[0].frames
}

type renderCall struct {
	in, out    string
	start, end float64
	crop       types.CropRect
	target     types.Resolution
}

type muxCall struct {
	silent, audio, out string
	start, end         float64
}

type fakeVideoTool struct {
	info     types.VideoInfo
	probeErr error
	probes   int

	frameCount int
	opens      int
	lastOpts   ports.FrameOptions

	writerPath string
	writers    []*fakeWriter

	renderErr   error
	renderCalls []renderCall
	muxCalls    []muxCall
}

var _ ports.VideoTool = (*fakeVideoTool)(nil)

func (f *fakeVideoTool) Probe(_ context.Context, _ string) (types.VideoInfo, error) {
	f.probes++
	if f.probeErr != nil {
		return types.VideoInfo{}, f.probeErr
	}
	return f.info, nil
}

func (f *fakeVideoTool) OpenFrames(_ context.Context, _ string, opts ports.FrameOptions) (ports.FrameReader, error) {
	f.opens++
	f.lastOpts = opts
	return &fakeReader{info: f.info, remaining: f.frameCount}, nil
}

func (f *fakeVideoTool) NewFrameWriter(_ context.Context, path string, _ ports.WriterOptions) (ports.FrameWriter, error) {
	f.writerPath = path
	if err := os.WriteFile(path, []byte("tmp"), 0o644); err != nil {
		return nil, err
	}
	w := &fakeWriter{}
	f.writers = append(f.writers, w)
	return w, nil
}

func (f *fakeVideoTool) RenderCropped(_ context.Context, inPath string, start, end float64, crop types.CropRect, target types.Resolution, outPath string) error {
	f.renderCalls = append(f.renderCalls, renderCall{
		in: inPath, out: outPath, start: start, end: end, crop: crop, target: target,
	})
	if f.renderErr != nil {
		return f.renderErr
	}
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

func (f *fakeVideoTool) MuxAudio(_ context.Context, silentVideo, audioSource string, start, end float64, outPath string) error {
	f.muxCalls = append(f.muxCalls, muxCall{
		silent: silentVideo, audio: audioSource, start: start, end: end, out: outPath,
	})
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

type fakeReader struct {
	info      types.VideoInfo
	remaining int
	closed    bool
}

var _ ports.FrameReader = (*fakeReader)(nil)

func (r *fakeReader) Info() types.VideoInfo { return r.info }

func (r *fakeReader) Next() (*image.RGBA, error) {
	if r.closed || r.remaining == 0 {
		return nil, io.EOF
	}
	r.remaining--
	return image.NewRGBA(image.Rect(0, 0, r.info.Width, r.info.Height)), nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	frames int
	closed bool
}

var _ ports.FrameWriter = (*fakeWriter)(nil)

func (w *fakeWriter) Write(_ *image.RGBA) error {
	w.frames++
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeDetector struct {
	dets  []types.Detection
	err   error
	calls int
}

var _ ports.FaceDetector = (*fakeDetector)(nil)

func (d *fakeDetector) Detect(_ *image.RGBA) ([]types.Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.dets, nil
}
