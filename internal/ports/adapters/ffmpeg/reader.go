package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/forPelevin/reframe/internal/ports"
	"github.com/forPelevin/reframe/internal/types"
)

// OpenFrames probes the source, then starts a single ffmpeg decode that
// streams raw RGBA frames over a pipe. With opts.SampleInterval > 0 the
// decoder itself thins the stream to one frame per interval, so only sampled
// frames are ever piped.
func (a *Adapter) OpenFrames(ctx context.Context, path string, opts ports.FrameOptions) (ports.FrameReader, error) {
	info, err := a.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, a.ffmpeg, openFramesArgs(path, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decode: %w", err)
	}

	return &frameReader{
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		info:   info,
	}, nil
}

func openFramesArgs(path string, opts ports.FrameOptions) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmtSeconds(opts.Start),
		"-i", path,
	}
	if opts.End > opts.Start {
		args = append(args, "-t", fmtSeconds(opts.End-opts.Start))
	}
	if opts.SampleInterval > 0 {
		args = append(args, "-vf", "fps=1/"+fmtSeconds(opts.SampleInterval))
	}
	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-an",
		"-",
	)
}

type frameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	info   types.VideoInfo

	closed  bool
	waited  bool
	waitErr error
}

var _ ports.FrameReader = (*frameReader)(nil)

// Info reports the probed source properties, not the thinned stream's.
func (r *frameReader) Info() types.VideoInfo { return r.info }

func (r *frameReader) Next() (*image.RGBA, error) {
	if r.closed {
		return nil, fmt.Errorf("frame reader is closed")
	}
	buf := make([]byte, r.info.Width*r.info.Height*4)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		if err == io.EOF {
			if werr := r.wait(); werr != nil {
				return nil, werr
			}
			return nil, io.EOF
		}
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return &image.RGBA{
		Pix:    buf,
		Stride: r.info.Width * 4,
		Rect:   image.Rect(0, 0, r.info.Width, r.info.Height),
	}, nil
}

// Close tears the decode down. Killing a still-streaming process is the
// normal way to stop early; its exit status is ignored on that path.
func (r *frameReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	_ = r.stdout.Close()
	if !r.waited {
		r.waited = true
		_ = r.cmd.Process.Kill()
		_ = r.cmd.Wait()
	}
	return nil
}

func (r *frameReader) wait() error {
	if r.waited {
		return r.waitErr
	}
	r.waited = true
	if err := r.cmd.Wait(); err != nil {
		r.waitErr = fmt.Errorf("ffmpeg decode: %w\n%s", err, r.stderr.String())
	}
	return r.waitErr
}
