//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func probeDurationSeconds(mp4Path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func probeDimensions(mp4Path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("parse dimensions %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", ws, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", hs, err)
	}
	return w, h, nil
}
