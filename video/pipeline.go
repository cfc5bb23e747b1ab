// Package video implements the video-analysis pipeline: decode, sample,
// detect, annotate, re-mux and re-encode, with explicit resource lifecycles
// and the failure-recovery branches each stage needs.
package video

import (
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/visionhub/odh/annotate"
	"github.com/visionhub/odh/detect"
	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/logger"
)

// Options are per-invocation parameters, not pipeline state.
type Options struct {
	// Conf is forwarded verbatim to the detector for every sampled frame.
	Conf float32
	// FrameStep is the sampling stride; values below 1 are coerced to 1.
	FrameStep int
	// MaxFrames, when positive, stops decoding after that many frames
	// (inclusive of the frame that reaches the limit). Zero is unbounded.
	MaxFrames int
}

// Pipeline drives source -> (sample -> detect -> annotate) -> sink ->
// transcode for one video. A pipeline instance may be shared across
// invocations; each invocation owns its source, sink and transcoder
// process handles exclusively.
type Pipeline struct {
	Detector   detect.Detector
	Transcoder *Transcoder
}

// NewPipeline builds a pipeline around a detector with default transcoding.
func NewPipeline(d detect.Detector) *Pipeline {
	return &Pipeline{Detector: d, Transcoder: &Transcoder{}}
}

// intermediatePath derives the raw container location next to the final
// output ("output.mp4" -> "output.raw.mp4").
func intermediatePath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".raw.mp4"
}

// Process analyzes one video file and writes the annotated, re-encoded
// result to outputPath. Only source-open and writer-open failures abort;
// per-frame detection errors and transcode failures degrade the output and
// are absorbed. The returned result owns no file handles.
func (p *Pipeline) Process(inputPath, outputPath string, opts Options) (*detection.PipelineResult, error) {
	step := ClampStep(opts.FrameStep)

	src, err := OpenSource(inputPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := src.Info()
	rawPath := intermediatePath(outputPath)
	sink, err := OpenSink(rawPath, info.FPS, info.Width, info.Height)
	if err != nil {
		return nil, err
	}
	defer sink.Close()

	var (
		flat     = []detection.Detection{}
		perFrame = []detection.FrameRecord{}
		frameIdx = 0
		sampled  = 0
	)

	frame := gocv.NewMat()
	defer frame.Close()

	// Every frame the source hands out is counted and written, so
	// FramesRead reflects the decoded stream exactly.
	for src.Read(&frame) {
		if ShouldSample(frameIdx, step) {
			dets, derr := p.Detector.Predict(frame, opts.Conf)
			if derr != nil {
				logger.Error("detection failed at frame %d: %v", frameIdx, derr)
				dets = []detection.Detection{}
			}
			flat = append(flat, dets...)
			perFrame = append(perFrame, detection.FrameRecord{
				FrameIndex: frameIdx,
				TimestampS: timestamp(frameIdx, info.FPS),
				Detections: dets,
			})
			sampled++

			annotated := annotate.Draw(frame, dets)
			if werr := sink.Write(annotated); werr != nil {
				logger.Error("writing annotated frame %d: %v", frameIdx, werr)
			}
			annotated.Close()
		} else {
			if werr := sink.Write(frame); werr != nil {
				logger.Error("writing frame %d: %v", frameIdx, werr)
			}
		}

		frameIdx++
		if opts.MaxFrames > 0 && frameIdx >= opts.MaxFrames {
			break
		}
	}

	// Handles must be released before the transcoder reads the
	// intermediate file.
	src.Close()
	if cerr := sink.Close(); cerr != nil {
		logger.Warn("closing video writer: %v", cerr)
	}

	p.Transcoder.Finalize(rawPath, outputPath)

	return &detection.PipelineResult{
		Meta: detection.VideoStreamMeta{
			FPS:           info.FPS,
			Width:         info.Width,
			Height:        info.Height,
			TotalFrames:   info.TotalFrames,
			FramesRead:    frameIdx,
			FrameStep:     step,
			SampledFrames: sampled,
		},
		Flat:     flat,
		PerFrame: perFrame,
	}, nil
}

func timestamp(frameIdx int, fps float64) float64 {
	if fps == 0 {
		return 0
	}
	return float64(frameIdx) / fps
}

// CaptureFrame reads the first frame of a video and writes it as an image,
// used for preview stills of finished analyses.
func CaptureFrame(videoPath, imagePath string) error {
	src, err := OpenSource(videoPath)
	if err != nil {
		return err
	}
	defer src.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	if !src.Read(&frame) || frame.Empty() {
		return &OpenError{Path: videoPath, Err: errEmptyStream}
	}
	if !gocv.IMWrite(imagePath, frame) {
		return &WriterError{Path: imagePath}
	}
	return nil
}
