package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/reframe/internal/domain/geometry"
	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "json",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: %v\n%s", path, ports.ErrSourceUnreadable, err, string(b))
	}
	return parseProbe(b, path)
}

func (a *Adapter) RenderCropped(ctx context.Context, inPath string, start, end float64, crop types.CropRect, target types.Resolution, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, renderCroppedArgs(inPath, start, end, crop, target, outPath)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render crop: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) MuxAudio(ctx context.Context, silentVideo, audioSource string, start, end float64, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, muxAudioArgs(silentVideo, audioSource, start, end, outPath)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg mux audio: %w\n%s", err, string(b))
	}
	return nil
}

func renderCroppedArgs(inPath string, start, end float64, crop types.CropRect, target types.Resolution, outPath string) []string {
	return []string{
		"-ss", fmtSeconds(start),
		"-i", inPath,
		"-t", fmtSeconds(end - start),
		"-vf", geometry.Filter(crop, target),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outPath,
	}
}

func muxAudioArgs(silentVideo, audioSource string, start, end float64, outPath string) []string {
	return []string{
		"-i", silentVideo,
		"-ss", fmtSeconds(start),
		"-i", audioSource,
		"-t", fmtSeconds(end - start),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-y",
		outPath,
	}
}

type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(b []byte, path string) (types.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: parse output: %v", path, ports.ErrSourceUnreadable, err)
	}
	if len(out.Streams) == 0 {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: no video stream", path, ports.ErrSourceUnreadable)
	}
	st := out.Streams[0]
	if st.Width <= 0 || st.Height <= 0 {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: stream reports %dx%d", path, ports.ErrSourceUnreadable, st.Width, st.Height)
	}
	fps, err := parseFrameRate(st.RFrameRate)
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: %v", path, ports.ErrSourceUnreadable, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w: parse duration %q: %v", path, ports.ErrSourceUnreadable, out.Format.Duration, err)
	}
	return types.VideoInfo{Width: st.Width, Height: st.Height, FPS: fps, Duration: dur}, nil
}

// parseFrameRate reads ffprobe r_frame_rate values, which come either as a
// fraction ("30/1", "30000/1001") or as a plain decimal ("29.97").
func parseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("frame rate %q has zero denominator", s)
		}
		return ratePositive(n/d, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	return ratePositive(f, s)
}

func ratePositive(f float64, raw string) (float64, error) {
	if f <= 0 {
		return 0, fmt.Errorf("frame rate %q is not positive", raw)
	}
	return f, nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
