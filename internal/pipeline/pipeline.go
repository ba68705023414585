package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reframe/internal/ports/adapters/pigo"
	"github.com/forPelevin/reframe/internal/types"
	"github.com/forPelevin/reframe/internal/usecase"
)

type Config struct {
	Input  string
	Output string

	// Start and End bound the reframed window in seconds of the source.
	// End 0 means the end of the source.
	Start float64
	End   float64

	// Ratio is the output aspect as "W:H", e.g. "9:16". Empty derives the
	// ratio from Size.
	Ratio string
	// Size is the output resolution as "WxH", e.g. "1080x1920". Empty uses
	// the 1080x1920 default.
	Size string

	Dynamic        bool
	Tracking       bool
	SampleInterval float64

	// CascadePath points at the pigo facefinder model. A missing or broken
	// model disables tracking instead of failing the run.
	CascadePath string

	FFmpegPath  string
	FFprobePath string

	Logf     func(format string, args ...any)
	Progress func(done, total int)
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.Output == "" {
		return errors.New("output is empty")
	}
	if c.Start < 0 {
		return fmt.Errorf("start must be >= 0")
	}
	if c.End > 0 && c.End <= c.Start {
		return fmt.Errorf("end must be > start")
	}
	if c.SampleInterval < 0 {
		return fmt.Errorf("sample interval must be >= 0")
	}
	if c.Ratio != "" {
		if _, err := ParseRatio(c.Ratio); err != nil {
			return err
		}
	}
	if c.Size != "" {
		if _, err := ParseSize(c.Size); err != nil {
			return err
		}
	}
	return nil
}

func Run(ctx context.Context, cfg Config) error {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	var ratio float64
	if cfg.Ratio != "" {
		r, err := ParseRatio(cfg.Ratio)
		if err != nil {
			return err
		}
		ratio = r
	}
	var size types.Resolution
	if cfg.Size != "" {
		s, err := ParseSize(cfg.Size)
		if err != nil {
			return err
		}
		size = s
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	var detector ports.FaceDetector
	if cfg.Tracking {
		det, err := pigo.New(cfg.CascadePath, pigo.Options{})
		if err != nil {
			logf("face detector unavailable (%v), falling back to center crop", err)
		} else {
			detector = det
		}
	}

	uc := usecase.New(v, detector, usecase.Options{
		Logf:     logf,
		Progress: cfg.Progress,
	})

	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	res, err := uc.Reframe(ctx, types.ReframeRequest{
		SourcePath:      cfg.Input,
		OutputPath:      cfg.Output,
		StartTime:       cfg.Start,
		EndTime:         cfg.End,
		TargetRatio:     ratio,
		Target:          size,
		TrackingEnabled: cfg.Tracking,
		DynamicMode:     cfg.Dynamic,
		SampleInterval:  cfg.SampleInterval,
	})
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	metaPath := metadataPath(cfg.Output)
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return err
	}
	logf("reframed %.2fs in %s mode: %s", res.Duration, res.Mode, res.OutputPath)
	logf("metadata written: %s", metaPath)
	return nil
}

// ParseRatio turns "W:H" into a width/height fraction, e.g. "9:16" into
// 0.5625.
func ParseRatio(s string) (float64, error) {
	ws, hs, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("ratio %q must look like W:H", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(ws), 64)
	if err != nil {
		return 0, fmt.Errorf("ratio %q: bad width: %w", s, err)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(hs), 64)
	if err != nil {
		return 0, fmt.Errorf("ratio %q: bad height: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("ratio %q must be positive", s)
	}
	return w / h, nil
}

// ParseSize turns "WxH" into a resolution, e.g. "1080x1920".
func ParseSize(s string) (types.Resolution, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return types.Resolution{}, fmt.Errorf("size %q must look like WxH", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return types.Resolution{}, fmt.Errorf("size %q: bad width: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return types.Resolution{}, fmt.Errorf("size %q: bad height: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return types.Resolution{}, fmt.Errorf("size %q must be positive", s)
	}
	return types.Resolution{Width: w, Height: h}, nil
}

// metadataPath sits the result sidecar next to the clip: out.mp4 -> out.json.
func metadataPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.FaceDetector = (*pigo.Adapter)(nil)
