package video

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// intermediateFourCC is the codec of the not-yet-transcoded container the
// sink accumulates. The transcoder re-encodes it for browser playback.
const intermediateFourCC = "mp4v"

// Sink accumulates frames into an intermediate video container. Every
// decoded frame is written exactly once, in decode order.
type Sink struct {
	writer *gocv.VideoWriter
	path   string
}

// OpenSink creates the intermediate container at the source's frame rate
// and dimensions. Failures are reported as *WriterError.
func OpenSink(path string, fps float64, width, height int) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &WriterError{Path: path, Err: err}
	}
	writer, err := gocv.VideoWriterFile(path, intermediateFourCC, fps, width, height, true)
	if err != nil {
		return nil, &WriterError{Path: path, Err: err}
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, &WriterError{Path: path, Err: errors.New("writer not opened")}
	}
	return &Sink{writer: writer, path: path}, nil
}

// Path returns the location of the intermediate container.
func (s *Sink) Path() string { return s.path }

// Write appends one frame.
func (s *Sink) Write(frame gocv.Mat) error {
	if s.writer == nil {
		return errors.New("sink is closed")
	}
	return s.writer.Write(frame)
}

// Close flushes and releases the writer handle. Safe to call more than
// once.
func (s *Sink) Close() error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}
