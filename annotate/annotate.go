// Package annotate renders detections onto frames: per-class colored boxes
// with labels plus a class-count legend. All drawing happens on a copy; the
// input frame is never mutated.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/visionhub/odh/detection"
)

const (
	// legendMaxClasses bounds how many classes the legend lists.
	legendMaxClasses = 12

	labelFontScale  = 0.6
	legendFontScale = 0.55
	boxThickness    = 2
)

var (
	legendBorder = color.RGBA{R: 203, G: 213, B: 225}
	legendText   = color.RGBA{R: 15, G: 23, B: 42}
	labelText    = color.RGBA{}
)

// ClassColor derives a stable color for a class id. Hues are spread with a
// golden-ratio increment over the hue circle at fixed saturation/value, so
// the same class renders identically within and across frames.
func ClassColor(classID int) color.RGBA {
	h := math.Mod(float64(classID)*0.61803398875, 1.0)
	r, g, b := hsvToRGB(h, 0.85, 0.95)
	return color.RGBA{R: r, G: g, B: b, A: 0}
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}

// Draw returns a copy of the frame with boxes, labels and the legend
// rendered. An empty detection list yields an unmodified copy with no
// legend, so the output is byte-identical to the input.
func Draw(frame gocv.Mat, dets []detection.Detection) gocv.Mat {
	out := frame.Clone()
	if len(dets) == 0 {
		return out
	}

	counts := make(map[string]int)
	colors := make(map[string]color.RGBA)

	for _, det := range dets {
		c := ClassColor(det.ClassID)
		if _, ok := colors[det.ClassName]; !ok {
			colors[det.ClassName] = c
		}
		counts[det.ClassName]++

		rect := image.Rect(int(det.X1), int(det.Y1), int(det.X2), int(det.Y2))
		gocv.Rectangle(&out, rect, c, boxThickness)

		label := fmt.Sprintf("%s %.2f", det.ClassName, det.Confidence)
		size, baseline := gocv.GetTextSizeWithBaseline(label, gocv.FontHersheySimplex, labelFontScale, 2)

		// Filled background behind the label keeps it legible on any frame.
		bgTop := rect.Min.Y - size.Y - baseline - 6
		if bgTop < 0 {
			bgTop = 0
		}
		bg := image.Rect(rect.Min.X, bgTop, rect.Min.X+size.X+6, rect.Min.Y)
		gocv.Rectangle(&out, bg, c, -1)
		gocv.PutText(&out, label, image.Pt(rect.Min.X+3, rect.Min.Y-4),
			gocv.FontHersheySimplex, labelFontScale, labelText, 2)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > legendMaxClasses {
		names = names[:legendMaxClasses]
	}
	drawLegend(&out, names, counts, colors)

	return out
}

// drawLegend renders the class-count panel in the top-right corner over a
// semi-transparent white background.
func drawLegend(out *gocv.Mat, names []string, counts map[string]int, colors map[string]color.RGBA) {
	if len(names) == 0 {
		return
	}

	const (
		pad   = 10
		lineH = 22
		boxW  = 220
	)
	boxH := pad*2 + lineH*len(names)

	w := out.Cols()
	h := out.Rows()
	x2 := w - 10
	y1 := 10
	x1 := x2 - boxW
	if x1 < 10 {
		x1 = 10
	}
	y2 := y1 + boxH
	if y2 > h-10 {
		y2 = h - 10
	}
	panel := image.Rect(x1, y1, x2, y2)

	overlay := out.Clone()
	defer overlay.Close()
	gocv.Rectangle(&overlay, panel, color.RGBA{R: 255, G: 255, B: 255}, -1)
	gocv.AddWeighted(overlay, 0.75, *out, 0.25, 0, out)
	gocv.Rectangle(out, panel, legendBorder, 1)

	y := y1 + pad + 16
	for _, name := range names {
		swatch := image.Rect(x1+pad, y-12, x1+pad+14, y+2)
		gocv.Rectangle(out, swatch, colors[name], -1)
		txt := fmt.Sprintf("%s: %d", name, counts[name])
		gocv.PutText(out, txt, image.Pt(x1+pad+22, y),
			gocv.FontHersheySimplex, legendFontScale, legendText, 2)
		y += lineH
	}
}
