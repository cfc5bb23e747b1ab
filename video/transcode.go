package video

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/visionhub/odh/logger"
)

// DefaultTranscodeTimeout bounds the external re-encode; expiry counts as
// a transcode failure and takes the fallback path.
const DefaultTranscodeTimeout = 5 * time.Minute

// Transcoder re-encodes the intermediate container into an H.264/yuv420p
// MP4 with the moov atom up front and audio stripped, the layout browsers
// play natively. Transcoding is best effort: when it fails, the
// intermediate file ships as the final artifact instead.
type Transcoder struct {
	// FFmpegPath is the re-encode binary; empty resolves "ffmpeg" from
	// PATH at invocation time.
	FFmpegPath string
	// Timeout bounds one transcode attempt; zero applies
	// DefaultTranscodeTimeout.
	Timeout time.Duration
}

// Run performs a single re-encode attempt. Any failure, including timeout,
// is returned as *TranscodeError.
func (t *Transcoder) Run(ctx context.Context, src, dst string) error {
	bin := t.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-an",
		dst,
	)
	if err := cmd.Run(); err != nil {
		return &TranscodeError{Src: src, Dst: dst, Err: err}
	}
	return nil
}

// Finalize attempts the re-encode and applies the fallback policy: on
// failure the intermediate is renamed to the final path as-is, unless a
// final file already exists. The intermediate is removed afterwards in
// every case where it did not itself become the final artifact. Cleanup
// failures are swallowed; Finalize never fails the pipeline.
func (t *Transcoder) Finalize(rawPath, finalPath string) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTranscodeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := t.Run(ctx, rawPath, finalPath); err != nil {
		logger.Warn("video transcode failed, keeping intermediate output: %v", err)
		if _, statErr := os.Stat(finalPath); os.IsNotExist(statErr) {
			if renameErr := os.Rename(rawPath, finalPath); renameErr != nil {
				logger.Warn("fallback rename failed: %v", renameErr)
			}
		}
	}

	if rawPath == finalPath {
		return
	}
	if _, err := os.Stat(rawPath); err == nil {
		if rmErr := os.Remove(rawPath); rmErr != nil {
			logger.Debug("intermediate cleanup failed: %v", rmErr)
		}
	}
}
