// Package detection defines the result types produced by image and video
// analysis: single detections, per-frame records and the aggregate pipeline
// result handed back to callers.
package detection

// Detection is one predicted object instance for a single frame or image.
// Coordinates are absolute pixels; x1<x2 and y1<y2 are expected but not
// enforced.
type Detection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// FrameRecord holds the detections of one sampled frame. Records exist only
// for frames that were selected by the sampling stride, not for every
// decoded frame.
type FrameRecord struct {
	FrameIndex int         `json:"frame_index"`
	TimestampS float64     `json:"timestamp_s"`
	Detections []Detection `json:"detections"`
}

// VideoStreamMeta describes the analyzed stream. TotalFrames comes from the
// container header and may be zero or wrong; FramesRead is the decoded
// ground truth.
type VideoStreamMeta struct {
	FPS           float64 `json:"fps"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	TotalFrames   int     `json:"total_frames"`
	FramesRead    int     `json:"frames_read"`
	FrameStep     int     `json:"frame_step"`
	SampledFrames int     `json:"sampled_frames"`
}

// PipelineResult is the sole artifact a pipeline run returns. Flat is the
// concatenation of every FrameRecord's detections in frame order; it owns
// no file handles.
type PipelineResult struct {
	Meta     VideoStreamMeta
	Flat     []Detection
	PerFrame []FrameRecord
}
