package video

// ClampStep coerces a caller-supplied sampling stride to at least 1.
// Invalid strides are never rejected, only corrected.
func ClampStep(step int) int {
	if step < 1 {
		return 1
	}
	return step
}

// ShouldSample reports whether the frame at the given decode index is
// selected for inference under the stride. Index 0 is always sampled.
func ShouldSample(frameIndex, step int) bool {
	return frameIndex%step == 0
}
