package types

import "image"

// Position is one detected subject position, normalized to the source frame.
// X and Y are the detection center in [0,1]; Width and Height are the
// detection box relative to the frame.
type Position struct {
	Frame      int     `json:"frame"`
	Timestamp  float64 `json:"timestamp"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Detection is a single detector hit on one frame, in pixel coordinates.
type Detection struct {
	Bounds     image.Rectangle
	Confidence float64
}

// CropRect is a crop window in source pixel coordinates.
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoInfo is what probing a source reports.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

// Resolution is an output width/height pair.
type Resolution struct {
	Width  int
	Height int
}

// ReframeRequest describes one reframe job.
//
// EndTime <= 0 means "to the end of the source". TargetRatio 0 derives the
// ratio from the target resolution. SampleInterval 0 uses the configured
// default.
type ReframeRequest struct {
	SourcePath string
	OutputPath string

	StartTime float64
	EndTime   float64

	TargetRatio float64
	Target      Resolution

	TrackingEnabled bool
	DynamicMode     bool
	SampleInterval  float64
}

// ReframeResult reports what a reframe run actually did. TrackingUsed is
// true only when sampling ran and found at least one position; a fallback
// to the default center always reports false.
type ReframeResult struct {
	OutputPath        string    `json:"output_path"`
	StartTime         float64   `json:"start_time"`
	EndTime           float64   `json:"end_time"`
	Duration          float64   `json:"duration"`
	TrackingUsed      bool      `json:"tracking_used"`
	PositionsDetected int       `json:"positions_detected"`
	Mode              string    `json:"mode"`
	Crop              *CropRect `json:"crop_info,omitempty"`
	FramesProcessed   int       `json:"frames_processed,omitempty"`
}

// Render modes reported in ReframeResult.Mode.
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
)
