package video

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// defaultFPS is assumed when the container reports no frame rate. It is
// used only for timestamp computation, never for frame scheduling.
const defaultFPS = 25.0

// StreamInfo is what the container reports about itself. TotalFrames comes
// from the header and may be zero or unreliable.
type StreamInfo struct {
	FPS         float64
	Width       int
	Height      int
	TotalFrames int
}

// Source wraps a video capture handle with dimension recovery. When the
// container header reports non-positive dimensions, opening probes one
// frame for the real size and seeks back to frame 0. If the seek does not
// take effect the probed frame is retained and served as frame 0, so it is
// never lost to the caller.
type Source struct {
	cap    *gocv.VideoCapture
	info   StreamInfo
	probed *gocv.Mat
}

// OpenSource opens a video container for sequential reads. Failures are
// reported as *OpenError.
func OpenSource(path string) (*Source, error) {
	cap, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, &OpenError{Path: path, Err: errors.New("container not opened")}
	}

	src := &Source{cap: cap}
	src.info = StreamInfo{
		FPS:         cap.Get(gocv.VideoCaptureFPS),
		Width:       int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(cap.Get(gocv.VideoCaptureFrameHeight)),
		TotalFrames: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}
	if src.info.FPS <= 0 {
		src.info.FPS = defaultFPS
	}

	if src.info.Width <= 0 || src.info.Height <= 0 {
		if err := src.probeDimensions(); err != nil {
			cap.Close()
			return nil, &OpenError{Path: path, Err: err}
		}
	}
	return src, nil
}

// probeDimensions reads one frame to recover the real frame size, then
// rewinds. Best effort: when the stream cannot seek back, the probed frame
// is kept so Read serves it first.
func (s *Source) probeDimensions() error {
	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return errors.New("failed to read frames from video")
	}
	s.info.Width = frame.Cols()
	s.info.Height = frame.Rows()

	s.cap.Set(gocv.VideoCapturePosFrames, 0)
	if int(s.cap.Get(gocv.VideoCapturePosFrames)) == 0 {
		frame.Close()
		return nil
	}
	s.probed = &frame
	return nil
}

// Info returns the stream metadata resolved at open time.
func (s *Source) Info() StreamInfo { return s.info }

// Read decodes the next frame into dst and reports whether one was
// available. End of stream returns false.
func (s *Source) Read(dst *gocv.Mat) bool {
	if s.probed != nil {
		s.probed.CopyTo(dst)
		s.probed.Close()
		s.probed = nil
		return true
	}
	if s.cap == nil {
		return false
	}
	return s.cap.Read(dst)
}

// Close releases the capture handle. Safe to call more than once.
func (s *Source) Close() error {
	if s.probed != nil {
		s.probed.Close()
		s.probed = nil
	}
	if s.cap == nil {
		return nil
	}
	err := s.cap.Close()
	s.cap = nil
	return err
}
