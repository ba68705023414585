package ports

import (
	"context"
	"errors"
	"image"

	"github.com/forPelevin/reframe/internal/types"
)

// ErrSourceUnreadable marks failures to open or probe the source video.
// Callers check it with errors.Is; there is no recovery path.
var ErrSourceUnreadable = errors.New("source unreadable")

// FrameOptions selects the window a FrameReader decodes.
//
// End <= 0 reads to the end of the source. SampleInterval > 0 asks the
// decoder to emit one frame per interval seconds instead of every frame.
type FrameOptions struct {
	Start          float64
	End            float64
	SampleInterval float64
}

// WriterOptions fixes the raw-frame geometry a FrameWriter accepts.
type WriterOptions struct {
	Width  int
	Height int
	FPS    float64
}

type VideoTool interface {
	// Probe reports the source dimensions, frame rate and duration.
	// Unreadable sources fail with an error wrapping ErrSourceUnreadable.
	Probe(ctx context.Context, path string) (types.VideoInfo, error)

	// OpenFrames starts a decode of the selected window and returns a
	// reader over its frames. The caller must Close the reader.
	OpenFrames(ctx context.Context, path string, opts FrameOptions) (FrameReader, error)

	// NewFrameWriter starts an encode to path from raw frames. The caller
	// must Close the writer; Close flushes and finalizes the file.
	NewFrameWriter(ctx context.Context, path string, opts WriterOptions) (FrameWriter, error)

	// RenderCropped cuts [start,end) out of the source, applies one fixed
	// crop scaled to target, and writes a finished clip with audio.
	RenderCropped(ctx context.Context, inPath string, start, end float64, crop types.CropRect, target types.Resolution, outPath string) error

	// MuxAudio combines the video stream of silentVideo with the audio of
	// audioSource over [start,end) into outPath.
	MuxAudio(ctx context.Context, silentVideo, audioSource string, start, end float64, outPath string) error
}

// FrameReader yields decoded frames in presentation order. Next returns
// io.EOF when the stream ends. Close is idempotent and safe to call with
// frames still pending; it tears the decode down.
type FrameReader interface {
	Info() types.VideoInfo
	Next() (*image.RGBA, error)
	Close() error
}

// FrameWriter consumes raw frames of the configured geometry. Close is
// idempotent; the first call flushes and reports any encoder failure.
type FrameWriter interface {
	Write(frame *image.RGBA) error
	Close() error
}

// FaceDetector finds subject candidates on a single frame.
//
// Implementations are not required to be safe for concurrent use. Callers
// running reframe operations in parallel must serialize access or build one
// detector per goroutine.
type FaceDetector interface {
	Detect(frame *image.RGBA) ([]types.Detection, error)
}
