package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/forPelevin/reframe/internal/ports"
)

// NewFrameWriter starts an ffmpeg encode that consumes raw RGBA frames on
// stdin and writes a silent H.264 file at path.
func (a *Adapter) NewFrameWriter(ctx context.Context, path string, opts ports.WriterOptions) (ports.FrameWriter, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("frame writer needs positive geometry, got %dx%d @ %v", opts.Width, opts.Height, opts.FPS)
	}

	cmd := exec.CommandContext(ctx, a.ffmpeg, newFrameWriterArgs(path, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encode pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encode: %w", err)
	}

	return &frameWriter{
		cmd:    cmd,
		stdin:  stdin,
		stderr: &stderr,
		width:  opts.Width,
		height: opts.Height,
	}, nil
}

func newFrameWriterArgs(path string, opts ports.WriterOptions) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(opts.Width) + "x" + strconv.Itoa(opts.Height),
		"-r", strconv.FormatFloat(opts.FPS, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		"-y",
		path,
	}
}

type frameWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	width  int
	height int

	closed  bool
	waited  bool
	waitErr error
}

var _ ports.FrameWriter = (*frameWriter)(nil)

func (w *frameWriter) Write(frame *image.RGBA) error {
	if w.closed {
		return fmt.Errorf("frame writer is closed")
	}
	b := frame.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("frame is %dx%d, writer expects %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	rowBytes := w.width * 4
	if frame.Stride == rowBytes {
		off := frame.PixOffset(b.Min.X, b.Min.Y)
		if _, err := w.stdin.Write(frame.Pix[off : off+rowBytes*w.height]); err != nil {
			return w.writeFailed(err)
		}
		return nil
	}
	for y := 0; y < w.height; y++ {
		off := frame.PixOffset(b.Min.X, b.Min.Y+y)
		if _, err := w.stdin.Write(frame.Pix[off : off+rowBytes]); err != nil {
			return w.writeFailed(err)
		}
	}
	return nil
}

// Close flushes pending frames and finalizes the container. The first call
// reports any encoder failure; later calls are no-ops.
func (w *frameWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.stdin.Close(); err != nil {
		_ = w.wait()
		return fmt.Errorf("close encoder input: %w", err)
	}
	return w.wait()
}

// writeFailed reaps a dead encoder so the broken-pipe error carries the
// encoder's own diagnostics instead of just EPIPE.
func (w *frameWriter) writeFailed(err error) error {
	w.closed = true
	_ = w.stdin.Close()
	if werr := w.wait(); werr != nil {
		return werr
	}
	return fmt.Errorf("write frame: %w", err)
}

func (w *frameWriter) wait() error {
	if w.waited {
		return w.waitErr
	}
	w.waited = true
	if err := w.cmd.Wait(); err != nil {
		w.waitErr = fmt.Errorf("ffmpeg encode: %w\n%s", err, w.stderr.String())
	}
	return w.waitErr
}
