package video

import (
	"fmt"

	"github.com/pkg/errors"
)

var errEmptyStream = errors.New("no frames in stream")

// OpenError means the source container could not be opened or decoded at
// all. It is fatal: the pipeline aborts before producing anything.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open video %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("open video %s", e.Path)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriterError means the output sink could not be created. Also fatal: no
// frames can be produced without it.
type WriterError struct {
	Path string
	Err  error
}

func (e *WriterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open video writer %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("open video writer %s", e.Path)
}

func (e *WriterError) Unwrap() error { return e.Err }

// TranscodeError wraps a failed re-encode attempt. It is recoverable: the
// pipeline falls back to shipping the intermediate file and never surfaces
// this to its caller.
type TranscodeError struct {
	Src string
	Dst string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }
