package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/reframe/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, input string) error {
	out, _ := cmd.Flags().GetString("out")
	start, _ := cmd.Flags().GetFloat64("start")
	end, _ := cmd.Flags().GetFloat64("end")
	ratio, _ := cmd.Flags().GetString("ratio")
	size, _ := cmd.Flags().GetString("size")
	dynamic, _ := cmd.Flags().GetBool("dynamic")
	tracking, _ := cmd.Flags().GetBool("tracking")
	interval, _ := cmd.Flags().GetFloat64("interval")
	cascade, _ := cmd.Flags().GetString("cascade")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	if out == "" {
		out = defaultOutput(absIn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	cfg := pipeline.Config{
		Input:          absIn,
		Output:         out,
		Start:          start,
		End:            end,
		Ratio:          ratio,
		Size:           size,
		Dynamic:        dynamic,
		Tracking:       tracking,
		SampleInterval: interval,
		CascadePath:    cascade,

		FFmpegPath:  getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		Logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
	if dynamic {
		cfg.Progress = renderProgress()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return pipeline.Run(ctx, cfg)
}

// defaultOutput derives "<input stem>-reframed.mp4" next to the input.
func defaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "-reframed.mp4"
}

// renderProgress draws one bar over the dynamic render. The bar is sized on
// first use because the frame total is only known after the source is probed.
func renderProgress() func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("rendering"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
			)
		}
		_ = bar.Set(done)
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
