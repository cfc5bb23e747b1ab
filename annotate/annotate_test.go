package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/visionhub/odh/detection"
)

// testFrame builds a deterministic BGR frame with a mid-gray background.
func testFrame(w, h int) gocv.Mat {
	frame := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(128, 128, 128, 0))
	gocv.Rectangle(&frame, image.Rect(40, 40, 120, 120), color.RGBA{R: 200}, -1)
	return frame
}

func TestDrawEmptyDetectionsIsIdentity(t *testing.T) {
	frame := testFrame(320, 240)
	defer frame.Close()

	out := Draw(frame, nil)
	defer out.Close()

	require.Equal(t, frame.ToBytes(), out.ToBytes(), "no detections must leave the frame untouched")
}

func TestDrawDoesNotMutateInput(t *testing.T) {
	frame := testFrame(320, 240)
	defer frame.Close()
	before := frame.ToBytes()

	dets := []detection.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.91, X1: 50, Y1: 50, X2: 150, Y2: 200},
	}
	out := Draw(frame, dets)
	defer out.Close()

	require.Equal(t, before, frame.ToBytes(), "input frame must not be mutated")
	require.NotEqual(t, frame.ToBytes(), out.ToBytes(), "annotated copy must differ")
}

func TestClassColorDeterministic(t *testing.T) {
	for _, id := range []int{0, 1, 7, 42} {
		require.Equal(t, ClassColor(id), ClassColor(id))
	}
	require.NotEqual(t, ClassColor(0), ClassColor(1))
	require.NotEqual(t, ClassColor(1), ClassColor(2))
}
