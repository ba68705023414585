package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "reframe <input>",
		Short:        "Recrop a landscape video around its subject",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags
	root.Flags().StringP("out", "o", "", `Output file (default "<input>-reframed.mp4")`)
	root.Flags().Float64("start", 0, "Window start in seconds")
	root.Flags().Float64("end", 0, "Window end in seconds (0 = end of source)")
	root.Flags().String("ratio", "9:16", "Output aspect ratio as W:H")
	root.Flags().String("size", "1080x1920", "Output resolution as WxH")
	root.Flags().Bool("dynamic", envBool("REFRAME_DYNAMIC_MODE", false), "Follow the subject with a moving crop")
	root.Flags().Bool("tracking", envBool("REFRAME_TRACKING", true), "Center the crop on the detected subject")

	// Hidden tuning flags (internal)
	root.Flags().Float64("interval", envFloat("REFRAME_SAMPLE_INTERVAL", 0.5), "Seconds between detection samples")
	root.Flags().String("cascade", getenvDefault("REFRAME_CASCADE", ".cache/models/facefinder"), "Path to the pigo facefinder cascade")
	_ = root.Flags().MarkHidden("interval")
	_ = root.Flags().MarkHidden("cascade")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
