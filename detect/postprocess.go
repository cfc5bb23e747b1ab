package detect

import (
	"sort"

	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/images"
)

// candidates per YOLOv8 640x640 output grid.
const numCandidates = 8400

// nmsThreshold is the IoU above which a lower-confidence box is merged away.
const nmsThreshold = 0.7

// decodeOutput turns the raw (1,84,8400) model output into detections in
// the original image's pixel space. Candidates below conf are dropped, the
// rest are de-duplicated with an IoU merge.
func decodeOutput(output []float32, conf float32, origWidth, origHeight int) []detection.Detection {
	type candidate struct {
		box   images.Rect
		score float32
		class int
	}

	boxes := make([]candidate, 0, 64)
	w := float32(origWidth)
	h := float32(origHeight)

	for idx := 0; idx < numCandidates; idx++ {
		classID := 0
		score := float32(-1)
		for col := 0; col < NumClasses; col++ {
			if p := output[numCandidates*(col+4)+idx]; p > score {
				score = p
				classID = col
			}
		}
		if score < conf {
			continue
		}

		// Center/size to corners, scaled out of the model input space.
		xc, yc := output[idx], output[numCandidates+idx]
		bw, bh := output[2*numCandidates+idx], output[3*numCandidates+idx]
		box := images.Rect{
			X1: (xc - bw/2) / inputSize * w,
			Y1: (yc - bh/2) / inputSize * h,
			X2: (xc + bw/2) / inputSize * w,
			Y2: (yc + bh/2) / inputSize * h,
		}.Clamp(w, h)

		boxes = append(boxes, candidate{box: box, score: score, class: classID})
	}

	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].score > boxes[j].score
	})

	kept := make([]candidate, 0, len(boxes))
	for _, c := range boxes {
		overlaps := false
		for _, k := range kept {
			if c.box.IoU(k.box) > nmsThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	out := make([]detection.Detection, 0, len(kept))
	for _, c := range kept {
		out = append(out, detection.Detection{
			ClassID:    c.class,
			ClassName:  ClassName(c.class),
			Confidence: float64(c.score),
			X1:         float64(c.box.X1),
			Y1:         float64(c.box.Y1),
			X2:         float64(c.box.X2),
			Y2:         float64(c.box.Y2),
		})
	}
	return out
}
