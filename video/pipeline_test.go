package video

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/visionhub/odh/detection"
)

// stubDetector returns a fixed detection list per call and counts
// invocations.
type stubDetector struct {
	dets  []detection.Detection
	calls int
}

func (s *stubDetector) Predict(img gocv.Mat, conf float32) ([]detection.Detection, error) {
	s.calls++
	out := make([]detection.Detection, len(s.dets))
	copy(out, s.dets)
	return out, nil
}

func (s *stubDetector) Close() error { return nil }

// writeSyntheticVideo produces a small mp4 with the given frame count.
func writeSyntheticVideo(t *testing.T, path string, frames, width, height int) {
	t.Helper()
	writer, err := gocv.VideoWriterFile(path, "mp4v", 25, width, height, true)
	require.NoError(t, err)
	require.True(t, writer.IsOpened())
	defer writer.Close()

	frame := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < frames; i++ {
		// Vary intensity so the encoder keeps every frame.
		frame.SetTo(gocv.NewScalar(float64(i%255), 64, 128, 0))
		require.NoError(t, writer.Write(frame))
	}
}

func testPipeline(det *stubDetector) *Pipeline {
	return &Pipeline{
		Detector:   det,
		Transcoder: &Transcoder{FFmpegPath: "/nonexistent/ffmpeg", Timeout: time.Second},
	}
}

func TestPipelineSamplingScenario(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	writeSyntheticVideo(t, input, 100, 160, 120)

	det := &stubDetector{}
	res, err := testPipeline(det).Process(input, output, Options{
		Conf:      0.25,
		FrameStep: 10,
	})
	require.NoError(t, err)

	require.Equal(t, 100, res.Meta.FramesRead)
	require.Equal(t, 10, res.Meta.SampledFrames)
	require.Equal(t, 10, res.Meta.FrameStep)
	require.Empty(t, res.Flat)
	require.Len(t, res.PerFrame, res.Meta.SampledFrames)

	for i, fr := range res.PerFrame {
		require.Equal(t, i*10, fr.FrameIndex)
		require.Zero(t, fr.FrameIndex%res.Meta.FrameStep)
		require.InDelta(t, float64(fr.FrameIndex)/25.0, fr.TimestampS, 1e-9)
	}
	require.Equal(t, 10, det.calls)

	// Transcode failed (no ffmpeg), so the intermediate must have been
	// renamed into place and the output still exists non-empty.
	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
	_, err = os.Stat(intermediatePath(output))
	require.True(t, os.IsNotExist(err))
}

func TestPipelineMaxFramesCutoff(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	writeSyntheticVideo(t, input, 40, 160, 120)

	det := &stubDetector{}
	res, err := testPipeline(det).Process(input, output, Options{
		Conf:      0.25,
		FrameStep: 5,
		MaxFrames: 12,
	})
	require.NoError(t, err)

	require.Equal(t, 12, res.Meta.FramesRead)
	require.Equal(t, 3, res.Meta.SampledFrames)
	indices := make([]int, 0, len(res.PerFrame))
	for _, fr := range res.PerFrame {
		indices = append(indices, fr.FrameIndex)
	}
	require.Equal(t, []int{0, 5, 10}, indices)
}

func TestPipelineStepCoercion(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	writeSyntheticVideo(t, input, 8, 160, 120)

	res, err := testPipeline(&stubDetector{}).Process(input, output, Options{
		Conf:      0.25,
		FrameStep: -3,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Meta.FrameStep)
	require.Equal(t, res.Meta.FramesRead, res.Meta.SampledFrames)
}

func TestPipelineFlatIsConcatenation(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	writeSyntheticVideo(t, input, 20, 160, 120)

	det := &stubDetector{dets: []detection.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.9, X1: 10, Y1: 10, X2: 60, Y2: 100},
		{ClassID: 2, ClassName: "car", Confidence: 0.8, X1: 70, Y1: 20, X2: 140, Y2: 90},
	}}
	res, err := testPipeline(det).Process(input, output, Options{
		Conf:      0.25,
		FrameStep: 7,
	})
	require.NoError(t, err)

	var concat []detection.Detection
	for _, fr := range res.PerFrame {
		concat = append(concat, fr.Detections...)
	}
	require.Equal(t, concat, res.Flat)
	require.Len(t, res.Flat, 2*res.Meta.SampledFrames)
}

func TestPipelineOpenFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := testPipeline(&stubDetector{}).Process(
		filepath.Join(dir, "missing.mp4"),
		filepath.Join(dir, "out.mp4"),
		Options{Conf: 0.25, FrameStep: 1},
	)
	require.Error(t, err)

	var oerr *OpenError
	require.ErrorAs(t, err, &oerr)
}
