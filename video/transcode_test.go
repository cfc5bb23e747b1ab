package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// brokenTranscoder points at a binary that cannot exist, forcing every
// attempt down the failure path.
func brokenTranscoder() *Transcoder {
	return &Transcoder{FFmpegPath: "/nonexistent/ffmpeg", Timeout: time.Second}
}

func TestRunMissingBinary(t *testing.T) {
	tr := brokenTranscoder()
	err := tr.Run(context.Background(), "in.mp4", "out.mp4")
	require.Error(t, err)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "in.mp4", terr.Src)
}

func TestFinalizeFallbackRename(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "output.raw.mp4")
	final := filepath.Join(dir, "output.mp4")
	require.NoError(t, os.WriteFile(raw, []byte("intermediate-bytes"), 0o644))

	brokenTranscoder().Finalize(raw, final)

	// The intermediate must have become the final artifact.
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	_, err = os.Stat(raw)
	require.True(t, os.IsNotExist(err), "intermediate must be gone")
}

func TestFinalizeSkipsRenameWhenFinalExists(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "output.raw.mp4")
	final := filepath.Join(dir, "output.mp4")
	require.NoError(t, os.WriteFile(raw, []byte("intermediate"), 0o644))
	require.NoError(t, os.WriteFile(final, []byte("already-final"), 0o644))

	brokenTranscoder().Finalize(raw, final)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	require.Equal(t, "already-final", string(data), "existing final output must not be replaced")

	_, err = os.Stat(raw)
	require.True(t, os.IsNotExist(err), "intermediate is cleaned up even when the rename is skipped")
}

func TestIntermediatePath(t *testing.T) {
	require.Equal(t, "/tmp/a/output.raw.mp4", intermediatePath("/tmp/a/output.mp4"))
	require.Equal(t, "clip.raw.mp4", intermediatePath("clip.avi"))
}
