// Package report renders the per-analysis PDF summary.
package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/storage"
)

const (
	pageMargin = 20.0
	maxImageW  = 170.0
	maxImageH  = 95.0
	topClasses = 20
)

// Generate writes a one-or-more page PDF summarizing an analysis: header,
// run parameters, the preview still when available, and the top detected
// classes. extraLines carries video stream details for video analyses.
func Generate(outPath string, meta storage.Meta, dets []detection.Detection, previewPath string, extraLines []string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pageMargin, 20, "Object Detection Hub - Report")

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pageMargin, 26, fmt.Sprintf("Analysis ID: %s", meta.AnalysisID))
	pdf.Text(pageMargin, 31, fmt.Sprintf("Type: %s", meta.Type))
	pdf.Text(pageMargin, 36, fmt.Sprintf("Model: %s | conf: %.2f | duration: %d ms",
		meta.Model, meta.ConfThreshold, meta.DurationMS))

	y := 46.0

	if previewPath != "" {
		if _, err := os.Stat(previewPath); err == nil {
			y = drawPreview(pdf, previewPath, y)
		}
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(pageMargin, y, "Summary")
	y += 6

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pageMargin, y, fmt.Sprintf("Detections: %d", len(dets)))
	y += 6

	for i, line := range extraLines {
		if i >= 6 {
			break
		}
		pdf.Text(pageMargin, y, line)
		y += 5
	}
	y += 2

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(pageMargin, y, "Detected classes (top)")
	y += 6

	pdf.SetFont("Helvetica", "", 10)
	for _, cc := range topClassCounts(dets) {
		pdf.Text(pageMargin+4, y, fmt.Sprintf("- %s: %d", cc.name, cc.count))
		y += 5
		if y > 277 {
			pdf.AddPage()
			y = 20
			pdf.SetFont("Helvetica", "", 10)
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return errors.Wrapf(err, "writing report %s", outPath)
	}
	return nil
}

// drawPreview fits the preview image into a fixed box, preserving aspect
// ratio, and returns the next free y position.
func drawPreview(pdf *gofpdf.Fpdf, path string, y float64) float64 {
	opts := gofpdf.ImageOptions{ReadDpi: false}
	info := pdf.RegisterImageOptions(path, opts)
	if pdf.Err() {
		// An unreadable preview degrades the report, never fails it.
		pdf.ClearError()
		return y
	}

	w := maxImageW
	h := w * info.Height() / info.Width()
	if h > maxImageH {
		h = maxImageH
		w = h * info.Width() / info.Height()
	}
	pdf.ImageOptions(path, pageMargin, y, w, h, false, opts, 0, "")
	return y + h + 8
}

type classCount struct {
	name  string
	count int
}

func topClassCounts(dets []detection.Detection) []classCount {
	counts := make(map[string]int)
	for _, d := range dets {
		if d.ClassName != "" {
			counts[d.ClassName]++
		}
	}
	out := make([]classCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, classCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > topClasses {
		out = out[:topClasses]
	}
	return out
}
